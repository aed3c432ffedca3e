package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/eth-sensor/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Eth Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.pending { color: orange; }
.bad { color: red; }
</style>
</head>
<body>
<h1>Eth Sensor {{.Session.ClientID}}</h1>

<h2>Messaging</h2>
<table>
<tr><th>Session</th><td id="session-state" class="{{if .Session.Ready}}ok{{else if .Session.Connected}}pending{{else}}bad{{end}}">{{stateOrUnknown .Session.State}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Status topic</th><td>{{.Session.StatusTopic}}</td></tr>
<tr><th>Command topic</th><td>{{.Config.CommandTopic}}</td></tr>
</table>

<h2>Clock</h2>
<table>
<tr><th>Synced</th><td class="{{if .Clock.Synced}}ok{{else}}bad{{end}}">{{if .Clock.Synced}}yes{{else}}no{{end}}</td></tr>
<tr><th>Now</th><td>{{.Clock.Now}}</td></tr>
{{if .Clock.AnchorTime}}<tr><th>Last sync</th><td>{{.Clock.AnchorTime}} (tick {{.Clock.AnchorTick}})</td></tr>{{end}}
<tr><th>Time source</th><td>{{.Config.ClockURL}}</td></tr>
</table>

<h2>Network</h2>
<table>
{{if .Network}}<tr><th>Link</th><td class="{{if eq .Network.Status "connected"}}ok{{else}}bad{{end}}">{{.Network.Status}} ({{.Network.Type}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>
<tr><th>Gateway</th><td>{{.Network.Gateway}}</td></tr>
<tr><th>MAC</th><td>{{.Network.MAC}}</td></tr>{{else}}<tr><th>Link</th><td class="pending">unknown</td></tr>{{end}}
</table>

{{if .Button.Enabled}}<h2>Reset Button</h2>
<table>
<tr><th>State</th><td>{{stateOrUnknown (printf "%s" .Button.State)}}</td></tr>
<tr><th>Presses</th><td>{{.Button.Counts.Presses}}</td></tr>
<tr><th>Config resets</th><td>{{.Button.Counts.Holds}}</td></tr>
{{if not .Button.LastReset.IsZero}}<tr><th>Last reset</th><td>{{.Button.LastReset.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>
{{end}}
<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sync interval</th><td>{{.Config.SyncInterval}}</td></tr>
<tr><th>Liveness</th><td>{{.Config.LivenessInterval}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">Metrics</a></p>
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
	indexTmpl.Execute(w, data)
}
