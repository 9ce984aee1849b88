package scraper

import (
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/prerender/fingerprint"
	"github.com/ysmood/gson"
)

// applyProfile installs the fingerprint on a fresh page. It must run
// before the first navigation.
func applyProfile(page *rod.Page, profile fingerprint.Profile) error {
	if profile.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if profile.SuppressAutomationFlag {
		if _, err := page.EvalOnNewDocument(fingerprint.WebdriverOverrideJS); err != nil {
			return fmt.Errorf("webdriver override: %w", err)
		}
	}

	if profile.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      profile.UserAgent,
			AcceptLanguage: profile.AcceptLanguage,
		})
		if err != nil {
			return fmt.Errorf("user agent: %w", err)
		}
	}

	if headers := profile.Headers(); len(headers) > 0 {
		if err := (proto.NetworkEnable{}).Call(page); err != nil {
			return fmt.Errorf("enable network: %w", err)
		}
		err := proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)
		if err != nil {
			return fmt.Errorf("extra headers: %w", err)
		}
	}

	w, h := profile.Viewport()
	err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             w,
		Height:            h,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("viewport: %w", err)
	}
	return nil
}

// toHeadersMap converts the ordered header list to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers []fingerprint.Header) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for _, h := range headers {
		m[h.Name] = gson.New(h.Value)
	}
	return m
}
