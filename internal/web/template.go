package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/pellet-smoker/internal/actuator"
	"github.com/sweeney/pellet-smoker/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"percent": func(u float64) string {
		return fmt.Sprintf("%.0f%%", u*100)
	},
	"phase": func(d time.Duration) string {
		if d == actuator.Forever {
			return "latched"
		}
		return d.String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Pellet Smoker</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.fault { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Pellet Smoker</h1>

<h2>Controller</h2>
<table>
<tr><th>State</th><td id="state">{{stateOrUnknown (printf "%s" .State)}}</td></tr>
<tr><th>Temperature</th><td id="temperature">{{if .HaveReading}}{{printf "%.1f" .TemperatureC}} &deg;C{{else}}no reading{{end}}</td></tr>
<tr><th>Setpoint</th><td>{{printf "%.1f" .Setpoint}} &deg;C</td></tr>
<tr><th>Auger duty</th><td>{{percent .Duty}}</td></tr>
<tr><th>Sensor</th><td class="{{if .Fault}}fault{{else}}on{{end}}">{{if .Fault}}{{.Fault}}{{else}}ok{{end}}</td></tr>
</table>

<h2>Actuators</h2>
<table>
{{range .Actuators}}<tr><th>{{.Name}}</th><td class="{{if .On}}on{{else}}off{{end}}">{{if .On}}ON{{else}}OFF{{end}} ({{phase .OnDuration}} / {{phase .OffDuration}}){{if .WriteErrors}} <span class="fault">{{.WriteErrors}} write errors</span>{{end}}</td></tr>
{{end}}</table>

<h2>PID</h2>
<table>
<tr><th>Error</th><td>{{printf "%.2f" .Terms.Error}}</td></tr>
<tr><th>P / I / D</th><td>{{printf "%.3f" .Terms.P}} / {{printf "%.3f" .Terms.I}} / {{printf "%.3f" .Terms.D}}</td></tr>
<tr><th>Output</th><td>{{printf "%.3f" .Terms.Output}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Transitions</th><td>{{.Counts.Transitions}}</td></tr>
<tr><th>Sensor faults</th><td>{{.Counts.Faults}}</td></tr>
<tr><th>Recoveries</th><td>{{.Counts.Recoveries}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Program</th><td>{{.Config.Target}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>PID cycle</th><td>{{.Config.CycleMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
{{if .Config.RunID}}<tr><th>Run</th><td>{{.Config.RunID}}</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render: %v", err)
	}
}
