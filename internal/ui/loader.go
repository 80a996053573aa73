package ui

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"paygate/internal/payment"
	"paygate/internal/pkg/httpclient"
)

// ScriptLoader fetches vendor SDK scripts and injects them into a document.
// A script is injected at most once per document and fetched at most once per
// process.
type ScriptLoader struct {
	client *httpclient.Client
	logger *zap.Logger

	mu      sync.Mutex
	fetched map[string]bool
}

func NewScriptLoader(client *httpclient.Client, logger *zap.Logger) *ScriptLoader {
	return &ScriptLoader{
		client:  client,
		logger:  logger,
		fetched: make(map[string]bool),
	}
}

// Load ensures src is present in doc. Fetch failures are *payment.VendorLoadError.
func (l *ScriptLoader) Load(ctx context.Context, doc *Document, src string) error {
	if doc.HasScript(src) {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.fetched[src] {
		if _, err := l.client.Get(ctx, src); err != nil {
			l.logger.Warn("Vendor script failed to load", zap.String("src", src), zap.Error(err))
			return &payment.VendorLoadError{Src: src, Err: err}
		}
		l.fetched[src] = true
	}

	if doc.InjectScript(src) {
		l.logger.Debug("Vendor script injected", zap.String("src", src))
	}
	return nil
}
