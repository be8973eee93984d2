// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

var pageTemplate = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  html, body { margin: 0; height: 100%; font-family: sans-serif; }
  #status { position: fixed; bottom: 0; left: 0; right: 0; padding: 4px 8px;
            font-size: 12px; background: #222; color: #ddd; }
  #status.hidden { display: none; }
  #content { border: 0; width: 100%; height: 100%; display: block; }
</style>
</head>
<body>
<iframe id="content" title="{{.Title}}"></iframe>
<div id="status">Starting backend...</div>
<script>
(function () {
  var frame = document.getElementById("content");
  var status = document.getElementById("status");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "{{.SocketPath}}");

  ws.onmessage = function (msg) {
    var m = JSON.parse(msg.data);
    if (m.type === "navigate") {
      frame.src = m.url;
      status.className = "hidden";
    } else if (m.type === "event" && m.event) {
      var e = m.event, p = e.payload || {};
      if (e.type === "backend.waiting") {
        status.textContent = "Waiting for backend (" + p.attempt + "/" + p.max + ")";
      } else if (e.type === "backend.timeout") {
        status.className = "";
        status.textContent = "Backend did not start in time.";
      } else if (e.type === "backend.exited") {
        status.className = "";
        status.textContent = "Backend exited with code " + p.exitCode + ".";
      } else if (e.type === "backend.source_changed") {
        status.className = "";
        status.textContent = "Backend source changed; restart to apply.";
      }
    }
  };
  ws.onclose = function () {
    status.className = "";
    status.textContent = "Disconnected from shell.";
  };
})();
</script>
</body>
</html>
`))

type pageData struct {
	Title      string
	SocketPath string
}

// servePage renders the shell page.
func (h *Host) servePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := pageData{Title: h.opts.Title, SocketPath: socketPath}
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Warn("failed to render shell page", zap.Error(err))
	}
}
