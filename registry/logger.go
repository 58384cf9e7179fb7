package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// productionLogger is a hand-rolled structured logger, grounded on
// core/config.go's ProductionLogger: JSON-or-text over encoding/json and
// io.Writer, no third-party logging library (no zap, zerolog, or logrus).
type productionLogger struct {
	level       string
	debug       bool
	serviceName string
	component   string
	format      string
	output      io.Writer
}

// NewLogger builds a Logger from LoggingConfig. serviceName identifies
// the process in every log line (teacher: "service" field).
func NewLogger(cfg LoggingConfig, serviceName string) ComponentAwareLogger {
	var output io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		output = os.Stderr
	}

	return &productionLogger{
		level:       strings.ToLower(cfg.Level),
		debug:       strings.ToLower(cfg.Level) == "debug",
		serviceName: serviceName,
		component:   "registry",
		format:      cfg.Format,
		output:      output,
	}
}

// WithComponent returns a copy of the logger tagged under a different
// component name, sharing the same output/format/level.
func (p *productionLogger) WithComponent(component string) Logger {
	clone := *p
	clone.component = component
	return &clone
}

func (p *productionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields)
}

func (p *productionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields)
}

func (p *productionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields)
}

func (p *productionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields)
	}
}

func (p *productionLogger) logEvent(level, msg string, fields map[string]interface{}) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "text" {
		var fieldStr strings.Builder
		for k, v := range fields {
			fieldStr.WriteString(fmt.Sprintf(" %s=%v", k, v))
		}
		fmt.Fprintf(p.output, "%s [%s] [%s/%s] %s%s\n",
			timestamp, level, p.serviceName, p.component, msg, fieldStr.String())
		return
	}

	entry := map[string]interface{}{
		"timestamp": timestamp,
		"level":     level,
		"service":   p.serviceName,
		"component": p.component,
		"message":   msg,
	}
	for k, v := range fields {
		entry[k] = v
	}
	if data, err := json.Marshal(entry); err == nil {
		fmt.Fprintln(p.output, string(data))
	}
}
