package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockedResourceTypes are failed with BlockedByClient. Only audio/video is
// dropped; images, styles and fonts still load so layout and overlay
// geometry stay realistic.
var blockedResourceTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeMedia: {},
}

// setupHijack installs a request interceptor on the page that fails blocked
// resource types and continues everything else unmodified.
//
// Returns the running HijackRouter so the caller can Stop it on close.
func setupHijack(page *rod.Page) (*rod.HijackRouter, error) {
	router := page.HijackRequests()

	// Pattern "*" + empty resourceType = intercept ALL requests, then
	// decide per-request whether to block or continue.
	err := router.Add("*", "", func(ctx *rod.Hijack) {
		if _, shouldBlock := blockedResourceTypes[ctx.Request.Type()]; shouldBlock {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		_ = router.Stop()
		return nil, err
	}

	// router.Run() blocks, so it must live in its own goroutine.
	// It will exit when router.Stop() is called.
	go router.Run()

	return router, nil
}
