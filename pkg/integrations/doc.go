// Package integrations provides HTTP clients for the services a postcard
// is built from.
//
// # Overview
//
// Each upstream service has its own subpackage:
//
//   - [imagefetch]: download the source photo
//   - [imgbb]: host an image and get a public URL
//   - [coze]: run a caption workflow for an image or a prompt
//   - [chat]: chat-completion providers (DeepSeek, Ollama) and reply parsing
//
// # Client Pattern
//
// Subpackage clients embed [Client], which supplies:
//   - an explicit bounded retry policy ([httputil.Policy]) owned by the client
//   - response caching through [cache.Cache] with a per-service namespace
//   - optional outbound rate limiting
//   - HTTP observability hooks
//
// Transport failures surface as the sentinel errors in this package
// ([ErrNetwork], [ErrTimeout], [ErrRateLimited], ...). Subpackages convert
// them to structured errors with [Classify] so callers can switch on codes.
//
// [imagefetch]: github.com/matzehuels/postcard/pkg/integrations/imagefetch
// [imgbb]: github.com/matzehuels/postcard/pkg/integrations/imgbb
// [coze]: github.com/matzehuels/postcard/pkg/integrations/coze
// [chat]: github.com/matzehuels/postcard/pkg/integrations/chat
// [httputil.Policy]: github.com/matzehuels/postcard/pkg/httputil.Policy
// [cache.Cache]: github.com/matzehuels/postcard/pkg/cache.Cache
package integrations
