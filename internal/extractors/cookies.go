package extractors

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const httpOnlyPrefix = "#HttpOnly_"

// loadCookieJar reads a Netscape cookies.txt file (the format yt-dlp and
// gallery-dl take with --cookies) into a jar, so each request only gets the
// cookies its host, path and scheme allow. Malformed lines are skipped.
func loadCookieJar(path string) (http.CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookies file: %w", err)
	}
	defer func() { _ = f.Close() }()

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		httpOnly := strings.HasPrefix(line, httpOnlyPrefix)
		line = strings.TrimPrefix(line, httpOnlyPrefix)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// domain, include subdomains, path, secure, expires, name, value
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		host := strings.TrimPrefix(fields[0], ".")
		c := &http.Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if strings.EqualFold(fields[1], "TRUE") {
			c.Domain = host
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			c.Expires = time.Unix(exp, 0)
		}
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: c.Path}, []*http.Cookie{c})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}
	return jar, nil
}

// cookieHeader returns the Cookie header value the file holds for target.
func cookieHeader(path, target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid cookie target %q: %w", target, err)
	}
	jar, err := loadCookieJar(path)
	if err != nil {
		return "", err
	}

	cookies := jar.Cookies(u)
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; "), nil
}
