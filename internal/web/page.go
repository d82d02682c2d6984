// internal/web/page.go
package web

// indexPage is the single-file chat client. It speaks the frame protocol
// of session.go over a WebSocket to /chat.
const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ragline</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; background: #111; color: #ddd; }
  #log { min-height: 20rem; border: 1px solid #333; border-radius: 6px; padding: 1rem; overflow-y: auto; }
  .you { color: #7aa2f7; font-weight: 600; margin-top: .75rem; }
  .bot { color: #ddd; white-space: pre-wrap; }
  .err { color: #f7768e; }
  form { display: flex; gap: .5rem; margin-top: 1rem; }
  input { flex: 1; padding: .5rem; background: #1a1a1a; color: #ddd; border: 1px solid #333; border-radius: 6px; }
  button { padding: .5rem 1rem; }
</style>
</head>
<body>
<h1>ragline</h1>
<div id="log"></div>
<form id="form">
  <input id="q" autocomplete="off" placeholder="Ask about your documents..." autofocus>
  <button>Send</button>
</form>
<script>
  const log = document.getElementById("log");
  const form = document.getElementById("form");
  const q = document.getElementById("q");
  const proto = location.protocol === "https:" ? "wss:" : "ws:";
  const ws = new WebSocket(proto + "//" + location.host + "/chat");
  let current = null;

  function append(cls, text) {
    const el = document.createElement("div");
    el.className = cls;
    el.textContent = text;
    log.appendChild(el);
    log.scrollTop = log.scrollHeight;
    return el;
  }

  ws.onmessage = (ev) => {
    const msg = JSON.parse(ev.data);
    if (msg.type === "fragment") {
      if (!current) current = append("bot", "");
      current.textContent += msg.data;
    } else if (msg.type === "error") {
      append("err", msg.data);
      current = null;
    } else if (msg.type === "done") {
      current = null;
    }
    log.scrollTop = log.scrollHeight;
  };
  ws.onclose = () => append("err", "Connection closed.");

  form.onsubmit = (ev) => {
    ev.preventDefault();
    const question = q.value.trim();
    if (!question) return;
    append("you", "You: " + question);
    ws.send(JSON.stringify({question}));
    q.value = "";
  };
</script>
</body>
</html>
`
