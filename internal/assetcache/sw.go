package assetcache

import (
	"bytes"
	"encoding/json"
	"net/http"
	"text/template"
)

var swTemplate = template.Must(template.New("sw.js").Parse(`const CACHE_NAME = {{.Name}};
const ASSETS = {{.Assets}};

self.addEventListener('install', (e) => {
    e.waitUntil(caches.open(CACHE_NAME).then((cache) => cache.addAll(ASSETS)));
});

self.addEventListener('activate', (e) => {
    e.waitUntil(caches.keys().then((keys) =>
        Promise.all(keys.filter((k) => k !== CACHE_NAME).map((k) => caches.delete(k)))));
});

self.addEventListener('fetch', (e) => {
    if (e.request.method !== 'GET' || e.request.headers.has('range')) {
        return;
    }
    e.respondWith(caches.match(e.request).then((hit) => hit || fetch(e.request)));
});
`))

// ServiceWorker renders the browser-side worker for the manifest.
func (m *Manager) ServiceWorker() ([]byte, error) {
	name, err := json.Marshal(m.manifest.Name)
	if err != nil {
		return nil, err
	}
	assets, err := json.Marshal(m.manifest.Assets)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := swTemplate.Execute(&buf, struct{ Name, Assets string }{string(name), string(assets)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ServeServiceWorker serves /sw.js with root scope and no caching.
func (m *Manager) ServeServiceWorker(w http.ResponseWriter, r *http.Request) {
	body, err := m.ServiceWorker()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Service-Worker-Allowed", "/")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(body)
}

