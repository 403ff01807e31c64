package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/aqualight/internal/status"
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
	"percent": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v)
	},
	"watts": func(v float64) string {
		return fmt.Sprintf("%.1f W", v)
	},
	"draw": func(ch status.ChannelStatus) float64 {
		return ch.Value / 100 * ch.Power
	},
	"swatch": func(color string) template.CSS {
		if color == "" {
			color = "#888888"
		}
		return template.CSS("background:" + color)
	},
	"modeClass": func(s fmt.Stringer) string {
		switch v := s.String(); v {
		case "SCHEDULED":
			return "scheduled"
		case "MANUAL":
			return "manual"
		case "MOONLIGHT":
			return "moonlight"
		default:
			return "unknown"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Aqualight</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.swatch { display: inline-block; width: 10px; height: 10px; border: 1px solid #444; margin-right: 6px; }
.scheduled { color: green; }
.manual { color: orange; font-weight: bold; }
.moonlight { color: #4466cc; }
.unknown { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Aqualight</h1>

<h2>Channels</h2>
{{if .Channels}}<table>
<tr><th>Channel</th><td>Mode</td><td>Level</td><td>Draw</td></tr>
{{range .Channels}}<tr><th><span class="swatch" style="{{swatch .Color}}"></span>{{.Name}}</th><td class="{{modeClass .Mode}}">{{.Mode}}</td><td>{{percent .Value}}</td><td>{{watts (draw .)}}</td></tr>
{{end}}</table>{{else}}<p>No active channels.</p>{{end}}

<h2>Output</h2>
<table>
<tr><th>Power</th><td>{{watts .Power}}</td></tr>
<tr><th>Generator</th><td>{{.Generator}}</td></tr>
<tr><th>Frequency</th><td>{{.Frequency}} Hz</td></tr>
<tr><th>Last push</th><td>{{if .LastPush.IsZero}}never{{else}}{{.LastPush.UTC.Format "2006-01-02T15:04:05Z"}}{{end}} ({{.Pushes}} total)</td></tr>
<tr><th>Timezone</th><td>UTC{{if ge .Timezone 0}}+{{end}}{{.Timezone}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
<tr><th>Data</th><td>{{.Config.DataDir}}</td></tr>
<tr><th>Restart</th><td>{{.Config.RestartMode}}</td></tr>
</table>

<p><a href="/control/">Control</a> | <a href="/index.json">JSON</a> | <a href="/settings">Settings</a></p>
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
