package renderer

import (
	"fmt"

	"github.com/a-h/templ"
)

const documentStyle = `
    body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; color: #1f2937; line-height: 1.6; }
    img { max-width: 100%; }
    table { border-collapse: collapse; }
    th, td { border: 1px solid #d1d5db; padding: .25rem .5rem; }
    .folio-chart { margin: 1rem 0; }
    .folio-bar { display: flex; align-items: center; gap: .5rem; }
    .folio-bar .label { min-width: 6rem; }
    .folio-bar .bar { display: inline-block; height: .75rem; background: #3b82f6; }
    .folio-line { width: 100%; max-width: 30rem; color: #3b82f6; }
    .folio-timeline time { font-weight: 600; }
    .folio-tasks li.done { color: #6b7280; text-decoration: line-through; }
    .folio-alert { border-left: 4px solid #3b82f6; background: #eff6ff; padding: .5rem 1rem; margin: 1rem 0; }
    .folio-alert-warning { border-color: #f59e0b; background: #fffbeb; }
    .folio-alert-error { border-color: #ef4444; background: #fef2f2; }
    .folio-alert-success { border-color: #10b981; background: #ecfdf5; }
    .folio-alert-tip { border-color: #8b5cf6; background: #f5f3ff; }
    .folio-stats { display: flex; gap: 1rem; flex-wrap: wrap; }
    .folio-stat { border: 1px solid #e5e7eb; border-radius: .5rem; padding: .75rem 1rem; display: flex; flex-direction: column; }
    .folio-stat .value { font-size: 1.5rem; font-weight: 700; }
    .folio-stat .change.up { color: #059669; }
    .folio-stat .change.down { color: #dc2626; }
`

const liveReloadScript = `
  <script>
    (function () {
      let latest = 0;
      function connect() {
        const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(proto + location.host + '/ws');
        ws.onmessage = function (event) {
          const msg = JSON.parse(event.data);
          if (msg.type !== 'render' || msg.generation < latest) return;
          latest = msg.generation;
          document.getElementById('folio-content').innerHTML = msg.content;
        };
        ws.onclose = function () { setTimeout(connect, 1000); };
      }
      connect();
    })();
  </script>`

// Document wraps an HTML fragment into a standalone page.
func Document(title, body string) string {
	return document(title, body, "")
}

// LiveDocument is Document plus a script that swaps in new renders pushed
// over the preview server's websocket.
func LiveDocument(title, body string) string {
	return document(title, body, liveReloadScript)
}

func document(title, body, script string) string {
	if title == "" {
		title = "folio"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s</title>
  <style>%s</style>
</head>
<body>
  <main id="folio-content">
%s
  </main>%s
</body>
</html>
`, templ.EscapeString(title), documentStyle, body, script)
}
