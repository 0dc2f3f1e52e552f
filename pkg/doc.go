// Package pkg provides the libraries behind the postcard tool.
//
// # Overview
//
// Postcard turns a photo into a shareable image: the photo on top, a short
// caption below it, and optionally a hand-drawn SVG sketch under the
// caption. The pkg directory is organized into these areas:
//
//  1. [postcard], [layout], [fonts], [svg] - composition (canvas, text
//     wrapping, CJK font resolution, SVG rasterization, encoding)
//  2. [integrations] - external services (image download, caption
//     workflows, chat providers, image hosting)
//  3. [pipeline] - orchestration (fetch → caption → compose → upload)
//  4. [cache], [config], [errors], [httputil], [observability] -
//     infrastructure shared by the CLI and the HTTP API
//
// # Architecture
//
// The typical data flow:
//
//	image URL or upload
//	         ↓
//	    [integrations/imagefetch] (download with retry)
//	         ↓
//	    [integrations/coze] or [integrations/chat] (【点评】 caption + 【SVG】 sketch)
//	         ↓
//	    [postcard] Composer (photo + wrapped caption + sketch)
//	         ↓
//	    JPEG/PNG/WebP/PDF, raw or base64, optionally hosted by [integrations/imgbb]
//
// # Quick Start
//
// Compose a postcard from bytes you already have:
//
//	import "github.com/matzehuels/postcard/pkg/postcard"
//
//	c, _ := postcard.NewComposer(postcard.DefaultConfig())
//	res, err := c.Compose(ctx, postcard.Input{
//	    Image:   photo,
//	    Caption: "海边的风很咸",
//	    SVG:     sketch,
//	})
//	os.WriteFile("card.jpg", res.Data, 0o644)
//
// Run the whole pipeline with caching:
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, logger,
//	    pipeline.WithFetcher(imagefetch.NewClient()),
//	    pipeline.WithWorkflows(coze.NewClient(key, workflows, nil)),
//	)
//	result, err := runner.Execute(ctx, pipeline.Options{ImageURL: url})
//
// The CLI (cmd/postcard) and the HTTP API (internal/server) are thin
// layers over [pipeline.Runner].
package pkg
