package handler

import (
	"fmt"
	"net/http"
)

// The callback pages render inside the OAuth popup. Both answer 200; the
// popup has no use for an HTTP error status.

const pageStyle = `
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    display: flex;
    align-items: center;
    justify-content: center;
    height: 100vh;
    margin: 0;
    background: linear-gradient(to bottom, #f5f5f5, white);
  }
  .container {
    text-align: center;
    padding: 40px;
    background: white;
    border-radius: 16px;
    box-shadow: 0 4px 12px rgba(0,0,0,0.1);
  }
  .icon {
    width: 64px;
    height: 64px;
    border-radius: 50%;
    display: flex;
    align-items: center;
    justify-content: center;
    margin: 0 auto 20px;
    color: white;
    font-size: 32px;
  }
  h1 { color: #333; margin-bottom: 10px; }
  p { color: #666; }
`

func writeSuccessPage(w http.ResponseWriter, providerName string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="ja">
  <head>
    <meta charset="utf-8">
    <title>%[1]s連携完了</title>
    <style>%[2]s .icon { background: #22c55e; }</style>
  </head>
  <body>
    <div class="container">
      <div class="icon">&#10003;</div>
      <h1>連携完了</h1>
      <p>%[1]sとの連携が完了しました。</p>
      <p>このウィンドウは自動的に閉じます。</p>
    </div>
    <script>
      setTimeout(() => window.close(), 2000);
    </script>
  </body>
</html>`, providerName, pageStyle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

func writeErrorPage(w http.ResponseWriter, message string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="ja">
  <head>
    <meta charset="utf-8">
    <title>エラー</title>
    <style>%[2]s .icon { background: #ef4444; }</style>
  </head>
  <body>
    <div class="container">
      <div class="icon">&#10007;</div>
      <h1>エラー</h1>
      <p>%[1]s</p>
      <p>このウィンドウを閉じて、もう一度お試しください。</p>
    </div>
  </body>
</html>`, message, pageStyle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}
