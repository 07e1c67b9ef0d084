package forbiddencalls

import (
	"log"
	"os"

	zlog "github.com/rs/zerolog/log"
)

func SomePanicFunction() {
	panic("this is forbidden") // want "panic is forbidden"
}

func SomeLogFatalFunction() {
	log.Fatalf("this is %s", "forbidden") // want "log.Fatal is forbidden outside main function"
}

func SomeLogPanicFunction() {
	log.Panicln("this is forbidden") // want "log.Panic is forbidden outside main function"
}

func SomeOsExitFunction() {
	os.Exit(1) // want "os.Exit is forbidden outside main function"
}

func ZerologFatal() {
	zlog.Fatal().Msg("stop") // want "log.Fatal is forbidden outside main function"
}

func ZerologPanic() {
	zlog.Panic().Msg("stop") // want "log.Panic is forbidden outside main function"
}

func ZerologInfo() {
	zlog.Info().Msg("fine")
}

func RecoverIsFine() (err error) {
	defer func() {
		_ = recover()
	}()
	return nil
}

type logger struct{}

func (logger) Fatal(string) {}

func MethodNamedFatal() {
	var l logger
	l.Fatal("not a package function")
}
