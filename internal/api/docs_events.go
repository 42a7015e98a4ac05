package api

const eventsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Event Stream | Demo Relay Agent</title>
  <style>
    *, *::before, *::after { box-sizing: border-box; }
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    a:hover { text-decoration: underline; }
    nav {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 0 24px;
      height: 48px;
      display: flex;
      align-items: center;
      gap: 24px;
    }
    nav .brand { font-weight: 600; font-size: 15px; color: #e6edf3; }
    nav .sep { color: #484f58; }
    nav .current { color: #e6edf3; font-weight: 500; }
    main { max-width: 860px; margin: 0 auto; padding: 32px 24px 64px; }
    h1 { font-size: 24px; color: #e6edf3; margin: 0 0 8px; }
    h2 { font-size: 18px; color: #e6edf3; margin: 32px 0 8px; border-bottom: 1px solid #21262d; padding-bottom: 6px; }
    code, pre {
      font-family: ui-monospace, SFMono-Regular, "SF Mono", Menlo, monospace;
      font-size: 13px;
    }
    code { background: #161b22; border: 1px solid #30363d; border-radius: 4px; padding: 1px 5px; }
    pre {
      background: #161b22;
      border: 1px solid #30363d;
      border-radius: 6px;
      padding: 12px 16px;
      overflow-x: auto;
    }
    pre code { background: none; border: none; padding: 0; }
    table { border-collapse: collapse; width: 100%; margin: 12px 0; }
    th, td { border: 1px solid #30363d; padding: 6px 12px; text-align: left; }
    th { background: #161b22; color: #e6edf3; }
  </style>
</head>
<body>
  <nav>
    <span class="brand">Demo Relay Agent</span>
    <span class="sep">/</span>
    <span class="current">Event Stream</span>
    <a class="back" href="/docs">← REST API Docs</a>
  </nav>
  <main>
    <h1>Pipeline Event Stream</h1>
    <p>The agent publishes pipeline notifications on two transports carrying
    identical JSON events. Delivery is best-effort; the capture endpoints are
    the source of truth.</p>

    <h2>Endpoints</h2>
    <table>
      <tr><th>Path</th><th>Transport</th></tr>
      <tr><td><code>/events</code></td><td>Server-sent events</td></tr>
      <tr><td><code>/ws/events</code></td><td>WebSocket (JSON text frames)</td></tr>
    </table>
    <p>Both accept an optional <code>?types=a,b</code> query parameter to
    filter event types.</p>

    <h2>Event types</h2>
    <table>
      <tr><th>Type</th><th>Meaning</th></tr>
      <tr><td><code>demo_download_detected</code></td><td>A demo download started in the watched browser</td></tr>
      <tr><td><code>capture_stored</code></td><td>A demo URL was correlated with a match and persisted</td></tr>
      <tr><td><code>capture_evicted</code></td><td>The held capture was dropped (stale, mismatched, or cleared)</td></tr>
      <tr><td><code>demo_delivery</code></td><td>A submission attempt finished</td></tr>
      <tr><td><code>session_state</code></td><td>A page session changed state</td></tr>
    </table>

    <h2>Example frame</h2>
    <pre><code>{
  "type": "demo_delivery",
  "payload": {
    "matchId": "1-abcd-ef01",
    "success": true,
    "message": "accepted"
  }
}</code></pre>
  </main>
</body>
</html>`
