package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

const serviceName = "backoffice-api"

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line logger: one JSON object per line on
// stdout, the collector does the rest.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Event stamps the entry with a timestamp and the service name and emits
// it as one JSON line. A marshal failure falls back to a static line so an
// unserializable field never drops the event entirely.
func Event(entry map[string]any) {
	if _, ok := entry["ts"]; !ok {
		entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	entry["service"] = serviceName
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"service":"` + serviceName + `","event":"log_marshal_failed"}`)
		return
	}
	Logger().Println(string(data))
}

// LogRequest emits the HTTP access-log line.
func LogRequest(entry map[string]any) {
	Event(entry)
}
