package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sourcer/config"
	"sourcer/models"
)

type fakeSession struct {
	navErr    error
	evalErr   error
	evalOut   string
	evalPanic bool
	html      string
	closed    *atomic.Int32
}

func (s *fakeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return s.navErr
}

func (s *fakeSession) Settle(ctx context.Context, d time.Duration) error {
	return nil
}

func (s *fakeSession) Evaluate(ctx context.Context, script string) (string, error) {
	if s.evalPanic {
		panic("page crashed")
	}
	return s.evalOut, s.evalErr
}

func (s *fakeSession) Content(ctx context.Context) (string, error) {
	return s.html, nil
}

func (s *fakeSession) Close() error {
	s.closed.Add(1)
	return nil
}

type fakeDriver struct {
	launchErr error
	template  fakeSession
	launched  atomic.Int32
	closed    atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	hold      time.Duration
}

func (d *fakeDriver) Launch(ctx context.Context) (BrowserSession, error) {
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	d.launched.Add(1)
	n := d.active.Add(1)
	for {
		m := d.maxActive.Load()
		if n <= m || d.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if d.hold > 0 {
		time.Sleep(d.hold)
	}
	d.active.Add(-1)
	s := d.template
	s.closed = &d.closed
	return &s, nil
}

type memArtifacts struct {
	mu   sync.Mutex
	keys []string
	data map[string][]byte
}

func (m *memArtifacts) SaveArtifact(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.keys = append(m.keys, key)
	m.data[key] = data
	return nil
}

const pageFacts = `{"price":"$425,000","address":"123 Main St","bedrooms":"3 bd","bathrooms":"2 ba","sqft":"1,850 sqft","yearBuilt":"1995"}`

func newTestBrowser(driver BrowserDriver, artifacts ArtifactSink, poolSize int) *BrowserExtractor {
	e := NewBrowserExtractor(config.ExtractorConfig{PoolSize: poolSize, NavTimeout: time.Second}, config.DefaultSite(), driver, artifacts)
	e.now = func() time.Time { return time.Date(2024, time.March, 9, 14, 30, 5, 0, time.UTC) }
	return e
}

func TestBrowserExtract_Success(t *testing.T) {
	driver := &fakeDriver{template: fakeSession{evalOut: pageFacts}}

	facts, err := newTestBrowser(driver, nil, 1).Extract(context.Background(), "https://www.zillow.com/homedetails/1_zpid/")
	require.NoError(t, err)

	assert.Equal(t, models.PropertyFacts{
		Price:     425000,
		Address:   "123 Main St",
		Sqft:      1850,
		Bedrooms:  3,
		Bathrooms: 2,
		YearBuilt: 1995,
		Source:    models.SourceBrowser,
	}, facts)
	assert.Equal(t, int32(1), driver.closed.Load())
}

func TestBrowserExtract_ReleasesSessionOnEveryFailure(t *testing.T) {
	tests := []struct {
		name    string
		session fakeSession
		kind    string
	}{
		{"navigate", fakeSession{navErr: errors.New("net::ERR_TIMED_OUT")}, "automation"},
		{"evaluate", fakeSession{evalErr: errors.New("execution context destroyed")}, "automation"},
		{"bad json", fakeSession{evalOut: "not json"}, "parse"},
		{"empty page", fakeSession{evalOut: `{"address":"55 Elm Rd"}`}, "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &fakeDriver{template: tt.session}
			e := newTestBrowser(driver, nil, 1)

			for i := 0; i < 3; i++ {
				_, err := e.Extract(context.Background(), "https://www.zillow.com/homedetails/1_zpid/")
				require.Error(t, err)
				assert.Equal(t, tt.kind, FailureKind(err))
			}
			assert.Equal(t, int32(3), driver.launched.Load())
			assert.Equal(t, int32(3), driver.closed.Load())
		})
	}
}

func TestBrowserExtract_LaunchFailure(t *testing.T) {
	driver := &fakeDriver{launchErr: errors.New("chromium not found")}

	_, err := newTestBrowser(driver, nil, 1).Extract(context.Background(), "https://www.zillow.com/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAutomation)
	assert.Equal(t, int32(0), driver.closed.Load())
}

func TestBrowserExtract_PanicStillClosesAndFreesSlot(t *testing.T) {
	driver := &fakeDriver{template: fakeSession{evalPanic: true}}
	e := newTestBrowser(driver, nil, 1)

	assert.Panics(t, func() {
		e.Extract(context.Background(), "https://www.zillow.com/x")
	})
	assert.Equal(t, int32(1), driver.closed.Load())

	// the only slot must be free again
	driver.template = fakeSession{evalOut: pageFacts}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := e.Extract(ctx, "https://www.zillow.com/x")
	require.NoError(t, err)
}

func TestBrowserExtract_CapturesFailedPage(t *testing.T) {
	sink := &memArtifacts{}
	driver := &fakeDriver{template: fakeSession{evalOut: `{}`, html: "<html>blocked</html>"}}

	_, err := newTestBrowser(driver, sink, 1).Extract(context.Background(), "https://www.zillow.com/homedetails/1_zpid/")
	require.Error(t, err)

	require.Len(t, sink.keys, 1)
	key := sink.keys[0]
	assert.True(t, strings.HasPrefix(key, "debug/20240309/"), key)
	assert.True(t, strings.HasSuffix(key, "-143005.html"), key)
	assert.Equal(t, "<html>blocked</html>", string(sink.data[key]))
}

func TestBrowserExtract_PoolBoundsConcurrency(t *testing.T) {
	driver := &fakeDriver{template: fakeSession{evalOut: pageFacts}, hold: 20 * time.Millisecond}
	e := newTestBrowser(driver, nil, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Extract(context.Background(), "https://www.zillow.com/x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), driver.launched.Load())
	assert.Equal(t, int32(8), driver.closed.Load())
	assert.LessOrEqual(t, driver.maxActive.Load(), int32(2))
}

func TestBrowserExtract_SlotWaitHonorsContext(t *testing.T) {
	driver := &fakeDriver{template: fakeSession{evalOut: pageFacts}}
	e := newTestBrowser(driver, nil, 1)
	require.NoError(t, e.pool.Acquire(context.Background(), 1))
	defer e.pool.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Extract(ctx, "https://www.zillow.com/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAutomation)
	assert.Equal(t, int32(0), driver.launched.Load())
}

func TestExtractionScript_EmbedsSelectors(t *testing.T) {
	script, err := extractionScript(config.DefaultSite().Browser)
	require.NoError(t, err)
	assert.Contains(t, script, `span[data-testid=\"price\"]`)
	assert.Contains(t, script, `"yearScan":"span, div, li"`)
	assert.Contains(t, script, "JSON.stringify")
}

func TestNewBrowserDriver(t *testing.T) {
	d, err := NewBrowserDriver(config.ExtractorConfig{BrowserDriver: "chromedp"})
	require.NoError(t, err)
	assert.IsType(t, &ChromedpDriver{}, d)

	d, err = NewBrowserDriver(config.ExtractorConfig{})
	require.NoError(t, err)
	assert.IsType(t, &PlaywrightDriver{}, d)

	_, err = NewBrowserDriver(config.ExtractorConfig{BrowserDriver: "selenium"})
	assert.Error(t, err)
}
