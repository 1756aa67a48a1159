// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package minilog extends Go's logging functionality to allow for multiple
// named loggers, each with its own level and color setting. Call AddLogger
// to register a logger, then use the package-level functions (Info, Debug,
// ...) to send messages to every registered logger at or above its level.
package minilog

import (
	"errors"
	"io"
	golog "log"
	"os"
	"sync"
)

var (
	loggers = make(map[string]*minilogger)
	logLock sync.RWMutex
)

// AddLogger registers a named logger that writes to output, filtering out
// anything below level.
func AddLogger(name string, output io.Writer, level Level, color bool) {
	logLock.Lock()
	defer logLock.Unlock()

	loggers[name] = &minilogger{golog.New(output, "", golog.LstdFlags), level, color, nil}
}

// DelLogger removes a named logger added with AddLogger.
func DelLogger(name string) {
	logLock.Lock()
	defer logLock.Unlock()

	delete(loggers, name)
}

// Loggers returns the names of every registered logger.
func Loggers() []string {
	logLock.RLock()
	defer logLock.RUnlock()

	ret := make([]string, 0, len(loggers))
	for k := range loggers {
		ret = append(ret, k)
	}
	return ret
}

// WillLog reports whether any registered logger would emit a message at
// level -- useful when assembling the message itself is expensive.
func WillLog(level Level) bool {
	logLock.RLock()
	defer logLock.RUnlock()

	for _, l := range loggers {
		if l.Level <= level {
			return true
		}
	}
	return false
}

// SetLevel changes a named logger's level.
func SetLevel(name string, level Level) error {
	logLock.Lock()
	defer logLock.Unlock()

	if loggers[name] == nil {
		return errors.New("logger does not exist")
	}
	loggers[name].Level = level
	return nil
}

// GetLevel returns a named logger's level.
func GetLevel(name string) (Level, error) {
	logLock.RLock()
	defer logLock.RUnlock()

	if loggers[name] == nil {
		return 0, errors.New("logger does not exist")
	}
	return loggers[name].Level, nil
}

// AddFilter suppresses any message containing filter from a named logger.
func AddFilter(name, filter string) error {
	logLock.Lock()
	defer logLock.Unlock()

	l, ok := loggers[name]
	if !ok {
		return errors.New("no such logger " + name)
	}
	for _, f := range l.filters {
		if f == filter {
			return nil
		}
	}
	l.filters = append(l.filters, filter)
	return nil
}

// DelFilter removes a previously added filter.
func DelFilter(name, filter string) error {
	logLock.Lock()
	defer logLock.Unlock()

	l, ok := loggers[name]
	if !ok {
		return errors.New("no such logger " + name)
	}
	for i, f := range l.filters {
		if f == filter {
			l.filters = append(l.filters[:i], l.filters[i+1:]...)
			return nil
		}
	}
	return errors.New("filter does not exist")
}

func dispatch(level Level, name, format string, arg ...interface{}) {
	logLock.RLock()
	defer logLock.RUnlock()

	for _, l := range loggers {
		if l.Level <= level {
			l.log(level, name, format, arg...)
		}
	}
}

func dispatchln(level Level, name string, arg ...interface{}) {
	logLock.RLock()
	defer logLock.RUnlock()

	for _, l := range loggers {
		if l.Level <= level {
			l.logln(level, name, arg...)
		}
	}
}

func Debug(format string, arg ...interface{}) { dispatch(DEBUG, "", format, arg...) }
func Info(format string, arg ...interface{})  { dispatch(INFO, "", format, arg...) }
func Warn(format string, arg ...interface{})  { dispatch(WARN, "", format, arg...) }
func Error(format string, arg ...interface{}) { dispatch(ERROR, "", format, arg...) }
func Fatal(format string, arg ...interface{}) {
	dispatch(FATAL, "", format, arg...)
	os.Exit(1)
}

func Debugln(arg ...interface{}) { dispatchln(DEBUG, "", arg...) }
func Infoln(arg ...interface{})  { dispatchln(INFO, "", arg...) }
func Warnln(arg ...interface{})  { dispatchln(WARN, "", arg...) }
func Errorln(arg ...interface{}) { dispatchln(ERROR, "", arg...) }

func Fatalln(arg ...interface{}) {
	dispatchln(FATAL, "", arg...)
	os.Exit(1)
}
