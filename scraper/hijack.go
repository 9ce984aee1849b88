package scraper

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// blockedSet turns config names into a lookup set, skipping unknown names.
// Scripts and XHR are never blockable: the pages we render fill their
// content through them.
func blockedSet(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		rt, ok := configToProto[name]
		if !ok {
			slog.Warn("ignoring unknown blocked resource type", "type", name)
			continue
		}
		blocked[rt] = struct{}{}
	}
	return blocked
}

// setupHijack aborts requests for the blocked resource types. It returns
// nil when nothing is blocked; otherwise the caller must Stop the router.
func setupHijack(page *rod.Page, blockedTypes []string) *rod.HijackRouter {
	blocked := blockedSet(blockedTypes)
	if len(blocked) == 0 {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, shouldBlock := blocked[ctx.Request.Type()]; shouldBlock {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks until router.Stop().
	go router.Run()

	return router
}
