// Package httpapi é a superfície HTTP do servidor de feedback.
//
// Rotas:
//
//	GET  /                 página de entrada (text/html, nonce por request)
//	GET  /api/public-key   chave pública armored, sem rate limit
//	POST /api/feedback     {"encryptedMessage": "..."}, com rate limit
//	GET  /livez, /readyz, /drain, /undrain
//
// Todo erro sai como {"error": "<texto genérico>"}. Nem respostas nem logs
// carregam endereço, user agent, headers ou o conteúdo submetido.
package httpapi
