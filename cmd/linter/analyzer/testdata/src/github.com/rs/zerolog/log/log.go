package log

type Event struct{}

func (e *Event) Msg(string) {}

func Info() *Event { return &Event{} }

func Fatal() *Event { return &Event{} }

func Panic() *Event { return &Event{} }
