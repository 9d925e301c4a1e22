package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"eve-hullscout/internal/logger"
)

// DefaultURL is the latest EVERef market orders snapshot.
const DefaultURL = "https://data.everef.net/market-orders/market-orders-latest.v3.csv.bz2"

// Download fetches url into dst unless dst already exists and is younger
// than fresh. It reports whether a new file was written. The body is
// streamed into a temp file beside dst and renamed into place, so a failed
// download never clobbers the previous snapshot.
func Download(ctx context.Context, url, dst string, fresh time.Duration) (bool, error) {
	if info, err := os.Stat(dst); err == nil && fresh > 0 && time.Since(info.ModTime()) < fresh {
		logger.Info("SNAPSHOT", fmt.Sprintf("Using cached %s (age %s)", dst, time.Since(info.ModTime()).Round(time.Second)))
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "eve-hullscout/1.0 (github.com)")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("download snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("download snapshot: HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".snapshot-*")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false, fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return false, err
	}
	logger.Success("SNAPSHOT", fmt.Sprintf("Downloaded %s (%d bytes)", dst, n))
	return true, nil
}
