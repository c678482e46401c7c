package agent

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flutlabs/pxflood/internal/control"
	"github.com/flutlabs/pxflood/internal/pix"
	"github.com/flutlabs/pxflood/internal/wall"
)

// Run bootstraps the flood engine and drives report cycles until ctx is
// cancelled or the wall drains. updates, when non-nil, delivers reloaded
// configurations which are folded in at cycle boundaries.
func Run(ctx context.Context, cfg Config, updates <-chan Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}

	ver := versionTag()
	log := logger.With().
		Str("run_id", uuid.New().String()).
		Str("ver", ver).
		Logger()

	e := &engine{
		cfg:     cfg,
		log:     log,
		ver:     ver,
		client:  control.NewClient(cfg.APIURL, ver, cfg.HTTPTimeout),
		httpc:   &http.Client{Timeout: cfg.HTTPTimeout},
		counter: &wall.Counter{},
	}
	defer e.closePool()

	if err := e.bootstrap(ctx); err != nil {
		return err
	}
	return e.loop(ctx, updates)
}

// engine carries the controller state between report cycles: the directive
// currently in force, the image and command set compiled from it, and the
// pool flooding it.
type engine struct {
	cfg     Config
	log     zerolog.Logger
	ver     string
	client  *control.Client
	httpc   *http.Client
	counter *wall.Counter

	dir  control.Directive
	img  pix.Image
	set  *pix.CommandSet
	pool *wall.Pool
}

// bootstrap obtains a first directive, compiles its image and connects the
// pool. Directive and image failures retry with backoff; a wall that cannot
// be reached at all is fatal and left to the host to restart.
func (e *engine) bootstrap(ctx context.Context) error {
	back := newBackoff(time.Second, 30*time.Second)

	dir, err := e.client.Report(ctx, 0)
	for err != nil {
		if st, lerr := loadState(e.cfg.StateDir); lerr == nil && st.Host != "" {
			e.log.Warn().Err(err).Msg("control api unreachable, using cached directive")
			dir = st.directive()
			break
		}
		e.log.Warn().Err(err).Msg("control api unreachable, retrying")
		back.Sleep(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		dir, err = e.client.Report(ctx, 0)
	}
	e.dir = dir

	back.Reset()
	for {
		img, set, ferr := e.fetchCompile(ctx, dir.ImageURL, dir.DX, dir.DY)
		if ferr == nil {
			e.img, e.set = img, set
			break
		}
		e.log.Warn().Err(ferr).Str("image_url", dir.ImageURL).Msg("image load failed, retrying")
		back.Sleep(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	pool, err := e.connect(wall.Endpoint{Host: dir.Host, Port: dir.Port})
	if err != nil {
		return err
	}
	e.pool = pool
	e.pool.SetCommands(e.set)
	_ = saveState(e.cfg.StateDir, stateFromDirective(e.dir))

	e.log.Info().
		Str("wall", e.pool.Endpoint().String()).
		Int("conns", e.pool.Size()).
		Int("pixels", e.set.Pixels()).
		Str("mode", e.dir.Mode).
		Msg("flooding")
	return nil
}

func (e *engine) loop(ctx context.Context, updates <-chan Config) error {
	ticker := time.NewTicker(e.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-e.pool.Drained():
			return fmt.Errorf("%w: wall %s drained", wall.ErrNoConnections, e.pool.Endpoint())

		case next := <-updates:
			e.applyConfig(next, ticker)

		case <-ticker.C:
			e.cycle(ctx)
			if e.cfg.Once {
				return nil
			}
		}
	}
}

// cycle reports the consumed pixel estimate and follows whatever the next
// directive changes: image URL, offsets, wall endpoint, mode. Every failure
// keeps the last good value of the piece that failed so the next cycle
// retries it.
func (e *engine) cycle(ctx context.Context) {
	pixels := e.counter.ReadAndReset(e.set.ByteLen(), e.set.Pixels())

	next, err := e.client.Report(ctx, pixels)
	if err != nil {
		e.log.Warn().Err(err).Msg("report failed, keeping current directive")
		return
	}
	e.log.Info().Int64("pixels", pixels).Int("conns", e.pool.Size()).Msg("reported")

	if next.ImageURL != e.dir.ImageURL || next.DX != e.dir.DX || next.DY != e.dir.DY {
		if err := e.reimage(ctx, next); err != nil {
			e.log.Warn().Err(err).Str("image_url", next.ImageURL).Msg("image reload failed, keeping current")
			next.ImageURL = e.dir.ImageURL
			next.DX, next.DY = e.dir.DX, e.dir.DY
		} else {
			e.log.Info().
				Str("image_url", next.ImageURL).
				Int("dx", next.DX).
				Int("dy", next.DY).
				Int("pixels", e.set.Pixels()).
				Msg("image updated")
		}
	}

	if next.Host != e.dir.Host || next.Port != e.dir.Port {
		ep := wall.Endpoint{Host: next.Host, Port: next.Port}
		pool, err := e.connect(ep)
		if err != nil {
			e.log.Warn().Err(err).Str("wall", ep.String()).Msg("wall switch failed, keeping current")
			next.Host, next.Port = e.dir.Host, e.dir.Port
		} else {
			e.pool.Close()
			e.pool = pool
			e.pool.SetCommands(e.set)
			e.log.Info().Str("wall", ep.String()).Int("conns", pool.Size()).Msg("switched wall")
		}
	}

	if next.Mode != e.dir.Mode {
		e.log.Info().Str("mode", next.Mode).Msg("mode changed")
	}

	e.dir = next
	_ = saveState(e.cfg.StateDir, stateFromDirective(e.dir))
}

// reimage compiles the image named by d at its offsets, fetching only when
// the URL moved, and publishes the new set to the pool.
func (e *engine) reimage(ctx context.Context, d control.Directive) error {
	if d.ImageURL != e.dir.ImageURL {
		img, set, err := e.fetchCompile(ctx, d.ImageURL, d.DX, d.DY)
		if err != nil {
			return err
		}
		e.img, e.set = img, set
	} else {
		set, err := pix.Compile(e.img, d.DX, d.DY)
		if err != nil {
			return err
		}
		e.set = set
	}
	e.pool.SetCommands(e.set)
	return nil
}

func (e *engine) fetchCompile(ctx context.Context, url string, dx, dy int) (pix.Image, *pix.CommandSet, error) {
	img, err := pix.Fetch(ctx, e.httpc, url)
	if err != nil {
		return pix.Image{}, nil, err
	}
	set, err := pix.Compile(img, dx, dy)
	if err != nil {
		return pix.Image{}, nil, err
	}
	return img, set, nil
}

func (e *engine) connect(ep wall.Endpoint) (*wall.Pool, error) {
	return wall.Connect(ep, e.cfg.MaxConns, e.cfg.SendBuf, e.cfg.DialTimeout, e.counter, e.log)
}

// applyConfig folds a reloaded configuration in between cycles. The control
// client follows api-url and timeout immediately; max-conns, send-buf and
// dial-timeout are picked up by the next reconnect. StateDir and Once are
// fixed for the lifetime of a run.
func (e *engine) applyConfig(next Config, ticker *time.Ticker) {
	next.StateDir, next.Once = e.cfg.StateDir, e.cfg.Once
	if next == e.cfg {
		return
	}
	if next.APIURL != e.cfg.APIURL || next.HTTPTimeout != e.cfg.HTTPTimeout {
		e.client = control.NewClient(next.APIURL, e.ver, next.HTTPTimeout)
		e.httpc = &http.Client{Timeout: next.HTTPTimeout}
	}
	if next.ReportInterval != e.cfg.ReportInterval {
		ticker.Reset(next.ReportInterval)
	}
	e.cfg = next
	e.log.Info().Msg("configuration reloaded")
}

func (e *engine) closePool() {
	if e.pool != nil {
		e.pool.Close()
	}
}
