package handlers

// Handler -- общий контракт обработчиков: каждый умеет проверить свою
// готовность до регистрации маршрутов.
type Handler interface {
	Ping() error
}
