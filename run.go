package postfeed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pevans/postfeed/extract"
	"github.com/pevans/postfeed/fetch"
	"github.com/pevans/postfeed/fingerprint"
	"github.com/pevans/postfeed/newsfeed"
	"github.com/pevans/postfeed/normalize"
	"github.com/pevans/postfeed/scraper"
	"github.com/pevans/postfeed/state"
)

// ErrDisallowed is returned for targets excluded by robots.txt.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// maxSequenceAttempts bounds how far the writer skips past record files that
// already exist for a day.
const maxSequenceAttempts = 100

// scrapedAtLayout matches the timestamps of records written by earlier
// scrapers.
const scrapedAtLayout = "2006-01-02T15:04:05.000000"

// sourceRun is the state of one source run. It is used by a single
// goroutine.
type sourceRun struct {
	engine     *Engine
	cfg        scraper.SourceConfig
	report     *RunReport
	log        zerolog.Logger
	st         *state.SourceState
	fetcher    *fetch.Fetcher
	robots     *fetch.RobotsChecker
	sourceHash string
}

func (e *Engine) newSourceRun(adapter scraper.SourceAdapter, report *RunReport, log zerolog.Logger) (*sourceRun, error) {
	cfg := scraper.ConfigOf(adapter)

	st, err := e.states.Load(cfg.ID)
	if err != nil {
		if !errors.Is(err, state.ErrCorruptState) {
			return nil, err
		}
		// Dedup history is lost; keep going with an empty state.
		log.Warn().Err(err).Msg("Source state is corrupt, starting from empty state")
		report.addError(StageState, e.states.Path(cfg.ID), err)
	}

	if cfg.CookieFile != "" {
		if _, err := os.Stat(cfg.CookieFile); err != nil {
			report.warn("cookie file %s not usable, fetching without cookies", cfg.CookieFile)
			log.Warn().Err(err).Str("path", cfg.CookieFile).Msg("Cookie file not usable, fetching without cookies")
		}
	}

	fetcher, err := fetch.NewFetcher(fetch.Config{
		Timeout:    e.cfg.FetchTimeout,
		UserAgent:  e.cfg.UserAgent,
		CookieFile: cfg.CookieFile,
		Transport:  e.transport,
	})
	if err != nil {
		return nil, err
	}

	run := &sourceRun{
		engine:     e,
		cfg:        cfg,
		report:     report,
		log:        log,
		st:         st,
		fetcher:    fetcher,
		sourceHash: fingerprint.SourceHash(cfg.IdentifierOrID()),
	}
	if cfg.RespectRobots {
		run.robots = fetch.NewRobotsChecker(fetcher, e.limiter)
	}

	st.SourceName = cfg.Name
	st.SourceHash = run.sourceHash
	return run, nil
}

func (r *sourceRun) execute(ctx context.Context) {
	for _, target := range r.cfg.Targets {
		if ctx.Err() != nil {
			r.report.warn("run cancelled before %s", target.URL)
			break
		}
		r.report.Targets++
		r.processTarget(ctx, target)
	}

	r.st.LastRun = r.engine.now().Format(scrapedAtLayout)
	r.saveState()
}

func (r *sourceRun) processTarget(ctx context.Context, target scraper.Target) {
	log := r.log.With().Str("target", target.URL).Logger()

	page, err := r.fetch(ctx, target.URL)
	if err != nil {
		r.report.TargetsFailed++
		r.report.addError(StageFetch, target.URL, err)
		log.Warn().Err(err).Msg("Failed to fetch target, skipping")
		return
	}

	var result *extract.Result
	if target.KindOrDefault() == scraper.KindFeed {
		result, err = extract.ExtractFeed(page.Body, r.maxItems())
	} else {
		result, err = extract.ExtractHTML(page.Body, r.cfg.Strategies, extract.Options{
			MinContentLength: r.engine.cfg.MinContentLength,
			MaxItems:         r.maxItems(),
			BaseURL:          page.FinalURL,
		})
	}
	if errors.Is(err, extract.ErrNoContent) {
		r.report.warn("%s: nothing extracted", target.URL)
		log.Warn().Msg("Nothing extracted from target")
		return
	}
	if err != nil {
		r.report.addError(StageExtract, target.URL, err)
		log.Warn().Err(err).Msg("Failed to extract target")
		return
	}
	if result.Fallback {
		r.report.warn("%s: no strategy matched, used paragraph fallback", target.URL)
		log.Warn().Msg("No strategy matched, used paragraph fallback")
	}

	if result.ShortContent > 0 && len(r.cfg.ArticleStrategies) == 0 {
		r.report.warn("%s: %d item(s) with short content, title used as fallback", target.URL, result.ShortContent)
		log.Warn().Int("items", result.ShortContent).Msg("Items with short content kept")
	}

	log.Debug().Str("strategy", result.Strategy).Int("candidates", len(result.Candidates)).Msg("Extracted target")
	r.report.Candidates += len(result.Candidates)

	for _, c := range result.Candidates {
		if ctx.Err() != nil {
			return
		}
		r.processCandidate(ctx, target, page.FinalURL, c, log)
	}
}

func (r *sourceRun) processCandidate(ctx context.Context, target scraper.Target, base string, c extract.Candidate, log zerolog.Logger) {
	opts := normalize.Options{
		MaxContentLength: r.engine.cfg.MaxContentLength,
		SourceName:       r.cfg.Name,
		FooterIcon:       r.cfg.FooterIcon,
		ContentType:      target.ContentType,
		DefaultImageURL:  r.cfg.DefaultImageURL,
		Now:              r.engine.now(),
	}

	item, err := normalize.Normalize(c, base, opts)
	if err != nil {
		log.Debug().Err(err).Msg("Dropped candidate")
		return
	}

	if len(r.cfg.ArticleStrategies) > 0 && item.URL != "" {
		if r.seenURL(item.URL) {
			r.report.DuplicateURL++
			return
		}
		detailed, ok := r.followArticle(ctx, c, item.URL, opts)
		if !ok {
			return
		}
		item = detailed
	}

	fp := fingerprint.New(item.URL, target.URL, item.Title, item.Body, fingerprint.Options{
		PrefixLength: r.engine.cfg.HashPrefixLength,
	})

	if !fp.Synthetic && r.seenURL(item.URL) {
		r.report.DuplicateURL++
		return
	}
	if r.st.HasHash(fp.ContentHash) {
		r.report.DuplicateContent++
		if !fp.Synthetic {
			r.st.AddURL(fp.URLIdentity)
		}
		return
	}

	name, err := r.persist(item, fp)
	if err != nil {
		// Not marked seen, so the next run tries again.
		r.report.addError(StagePersist, item.URL, err)
		log.Error().Err(err).Str("title", item.Title).Msg("Failed to write record")
		return
	}

	if !fp.Synthetic {
		r.st.AddURL(fp.URLIdentity)
	}
	r.st.AddHash(fp.ContentHash)
	r.report.New++
	r.report.Written = append(r.report.Written, name)
	log.Info().Str("file", name).Str("title", item.Title).Msg("Wrote record")

	r.saveState()
}

// followArticle fetches the article page behind a listing candidate and
// merges what the article strategies find into it.
func (r *sourceRun) followArticle(ctx context.Context, listing extract.Candidate, articleURL string, opts normalize.Options) (normalize.Item, bool) {
	page, err := r.fetch(ctx, articleURL)
	if err != nil {
		r.report.addError(StageFetch, articleURL, err)
		r.log.Warn().Err(err).Str("url", articleURL).Msg("Failed to fetch article, skipping")
		return normalize.Item{}, false
	}

	merged := listing
	merged.URL = articleURL

	result, err := extract.ExtractHTML(page.Body, r.cfg.ArticleStrategies, extract.Options{
		MinContentLength: r.engine.cfg.MinContentLength,
		MaxItems:         1,
		BaseURL:          page.FinalURL,
	})
	switch {
	case err == nil && len(result.Candidates) > 0:
		detail := result.Candidates[0]
		if detail.Title != "" {
			merged.Title = detail.Title
		}
		if detail.Content != "" {
			merged.Content = detail.Content
		}
		if detail.PublishedDate != "" {
			merged.PublishedDate = detail.PublishedDate
		}
		if detail.ImageURL != "" {
			merged.ImageURL = detail.ImageURL
		}
	case err != nil && !errors.Is(err, extract.ErrNoContent):
		r.report.addError(StageExtract, articleURL, err)
	default:
		r.report.warn("%s: nothing extracted from article, using listing", articleURL)
	}

	item, err := normalize.Normalize(merged, page.FinalURL, opts)
	if err != nil {
		return normalize.Item{}, false
	}
	// Keep the link we were given as the identity, not the redirect target.
	item.URL = articleURL
	return item, true
}

// fetch applies robots.txt and the politeness limiter before fetching.
func (r *sourceRun) fetch(ctx context.Context, rawURL string) (*fetch.FetchResult, error) {
	if r.robots != nil {
		allowed, err := r.robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrDisallowed
		}
	}
	if err := r.engine.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}
	return r.fetcher.Fetch(ctx, rawURL)
}

// persist writes the record under the next sequence number for its day.
// The counter only advances on a successful write.
func (r *sourceRun) persist(item normalize.Item, fp fingerprint.Fingerprint) (string, error) {
	// Counters are keyed by the ISO date; file names use the compact form.
	day := item.Date
	compactDay := strings.ReplaceAll(day, "-", "")

	recordURL := item.URL
	if fp.Synthetic {
		recordURL = fp.URLIdentity
	}

	rec := newsfeed.Record{
		Title:       item.Title,
		ID:          fingerprint.RecordID(recordURL),
		Content:     item.Content,
		URL:         recordURL,
		ImageURL:    item.ImageURL,
		ContentType: item.ContentType,
		Date:        item.Date,
		Source:      r.sourceHash,
		SourceName:  r.cfg.Name,
		ContentHash: fp.ContentHash,
		ScrapedAt:   r.engine.now().Format(scrapedAtLayout),
	}

	seq := r.st.Counter(day)
	for range maxSequenceAttempts {
		seq++
		name := newsfeed.Filename(r.sourceHash, compactDay, seq)

		err := r.engine.feed.Add(name, rec)
		if err == nil {
			r.st.SetCounter(day, seq)
			return name, nil
		}
		if !errors.Is(err, newsfeed.ErrRecordExists) {
			return "", err
		}
		r.log.Warn().Str("file", name).Msg("Record file exists but not in counters, skipping sequence number")
	}

	return "", fmt.Errorf("no free sequence number for %s after %d attempts", day, maxSequenceAttempts)
}

// seenURL checks both the canonical and the raw spelling, since state
// written by earlier scrapers stores URLs as found.
func (r *sourceRun) seenURL(rawURL string) bool {
	return r.st.HasURL(fingerprint.NormalizeURL(rawURL)) || r.st.HasURL(rawURL)
}

func (r *sourceRun) maxItems() int {
	if r.cfg.MaxItems > 0 {
		return r.cfg.MaxItems
	}
	return r.engine.cfg.MaxItems
}

func (r *sourceRun) saveState() {
	if err := r.engine.states.Save(r.cfg.ID, r.st); err != nil {
		r.report.addError(StageState, r.engine.states.Path(r.cfg.ID), err)
		r.log.Error().Err(err).Msg("Failed to save source state")
	}
}
