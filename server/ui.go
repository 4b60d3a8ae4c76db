package server

// indexHTML is a minimal built-in chat page against the session API. It is a
// development aid, not the product surface; real frontends talk to /v1
// directly.
const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width,initial-scale=1" />
  <title>Parley</title>
  <style>
    body { font-family: system-ui, sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; }
    #log { border: 1px solid #ccc; border-radius: 6px; padding: 1rem; min-height: 300px; }
    .user { color: #036; margin: .5rem 0; }
    .assistant { color: #222; margin: .5rem 0; white-space: pre-wrap; }
    .error { color: #a00; margin: .5rem 0; }
    form { display: flex; gap: .5rem; margin-top: 1rem; }
    input[type=text] { flex: 1; padding: .5rem; }
  </style>
</head>
<body>
  <h1>Parley</h1>
  <div id="log"></div>
  <form id="composer">
    <input type="text" id="text" placeholder="Say something…" autocomplete="off" />
    <button type="submit">Send</button>
    <button type="button" id="reset">Reset</button>
  </form>
  <script>
    const log = document.getElementById("log");
    let sessionID = null, ws = null, pending = null;

    function append(cls, text) {
      const div = document.createElement("div");
      div.className = cls;
      div.textContent = text;
      log.appendChild(div);
      return div;
    }

    async function connect() {
      const res = await fetch("/v1/sessions", { method: "POST" });
      const sess = await res.json();
      sessionID = sess.id;
      const proto = location.protocol === "https:" ? "wss:" : "ws:";
      ws = new WebSocket(proto + "//" + location.host + "/v1/sessions/" + sessionID + "/stream");
      ws.onmessage = (ev) => {
        const frame = JSON.parse(ev.data);
        if (frame.type === "delta") {
          if (!pending) pending = append("assistant", "");
          pending.textContent += frame.text;
        } else if (frame.type === "turn") {
          if (frame.turn) {
            if (pending) pending.textContent = frame.turn.content;
            else append("assistant", frame.turn.content);
          }
          pending = null;
        } else if (frame.type === "error") {
          append("error", frame.message);
          pending = null;
        }
      };
    }

    document.getElementById("composer").addEventListener("submit", (ev) => {
      ev.preventDefault();
      const input = document.getElementById("text");
      const text = input.value.trim();
      if (!text || !ws || ws.readyState !== WebSocket.OPEN) return;
      append("user", text);
      ws.send(JSON.stringify({ text }));
      input.value = "";
    });

    document.getElementById("reset").addEventListener("click", async () => {
      if (ws) ws.close();
      if (sessionID) await fetch("/v1/sessions/" + sessionID, { method: "DELETE" });
      log.replaceChildren();
      await connect();
    });

    connect();
  </script>
</body>
</html>
`
