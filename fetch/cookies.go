package fetch

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const httpOnlyPrefix = "#HttpOnly_"

// LoadCookieFile reads a Netscape cookies.txt file (as written by curl and
// browser export tools) into jar. Expired cookies are skipped.
func LoadCookieFile(jar http.CookieJar, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer f.Close()

	now := time.Now()
	byURL := map[string][]*http.Cookie{}
	urls := map[string]*url.URL{}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return fmt.Errorf("cookie file %s line %d: expected 7 fields, got %d", path, lineNo, len(fields))
		}

		domain := fields[0]
		secure := strings.EqualFold(fields[3], "TRUE")
		cookie := &http.Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Path:     fields[2],
			Secure:   secure,
			HttpOnly: httpOnly,
		}

		if expires, err := strconv.ParseInt(fields[4], 10, 64); err == nil && expires > 0 {
			cookie.Expires = time.Unix(expires, 0)
			if cookie.Expires.Before(now) {
				continue
			}
		}
		if strings.EqualFold(fields[1], "TRUE") {
			cookie.Domain = domain
		}

		scheme := "http"
		if secure {
			scheme = "https"
		}
		host := strings.TrimPrefix(domain, ".")
		key := scheme + "://" + host
		if _, ok := urls[key]; !ok {
			urls[key] = &url.URL{Scheme: scheme, Host: host, Path: "/"}
		}
		byURL[key] = append(byURL[key], cookie)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read cookie file: %w", err)
	}

	for key, cookies := range byURL {
		jar.SetCookies(urls[key], cookies)
	}
	return nil
}
