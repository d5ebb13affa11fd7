package browser

import (
	"context"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewChromeLauncher_Defaults(t *testing.T) {
	l := NewChromeLauncher(ChromeConfig{})
	assert.Equal(t, 1366, l.cfg.WindowWidth)
	assert.Equal(t, 768, l.cfg.WindowHeight)
	assert.NotNil(t, l.logger)
}

func TestContextOptions_RemoteSessionsGetOwnBrowserContext(t *testing.T) {
	local := NewChromeLauncher(ChromeConfig{}).contextOptions(zap.NewNop())
	remote := NewChromeLauncher(ChromeConfig{RemoteURL: "ws://127.0.0.1:9222/devtools/browser/x"}).contextOptions(zap.NewNop())
	require.Len(t, remote, len(local)+1)

	// Building the contexts starts nothing; the browser is only reached on
	// the first Run.
	l := NewChromeLauncher(ChromeConfig{RemoteURL: "ws://127.0.0.1:9222/devtools/browser/x"})
	allocCtx, allocCancel := l.allocator(context.Background())
	defer allocCancel()
	assert.NotPanics(t, func() {
		ctx, cancel := chromedp.NewContext(allocCtx, remote...)
		defer cancel()
		assert.NotNil(t, chromedp.FromContext(ctx))
	})
}

func TestContextOptions_LocalSessionsOwnTheirBrowser(t *testing.T) {
	l := NewChromeLauncher(ChromeConfig{Headless: true})
	allocCtx, allocCancel := l.allocator(context.Background())
	defer allocCancel()

	_, isRemote := chromedp.FromContext(allocCtx).Allocator.(*chromedp.RemoteAllocator)
	assert.False(t, isRemote)

	ctx, cancel := chromedp.NewContext(allocCtx, l.contextOptions(zap.NewNop())...)
	defer cancel()
	assert.Empty(t, chromedp.FromContext(ctx).BrowserContextID)
}

func TestAllocator_RemoteURLSelectsRemoteAllocator(t *testing.T) {
	l := NewChromeLauncher(ChromeConfig{RemoteURL: "ws://127.0.0.1:9222/devtools/browser/x"})
	allocCtx, allocCancel := l.allocator(context.Background())
	defer allocCancel()

	_, isRemote := chromedp.FromContext(allocCtx).Allocator.(*chromedp.RemoteAllocator)
	assert.True(t, isRemote)
}
