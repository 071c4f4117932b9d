package mcp

import "github.com/mark3labs/mcp-go/mcp"

var parseToolDef = mcp.NewTool("fortune_parse",
	mcp.WithDescription("Split a raw fortune answer into love/career/finance/health sections, tips and cautions. Pure: nothing is stored."),
	mcp.WithString("answer", mcp.Required(), mcp.Description("Raw fortune text")),
	mcp.WithNumber("max_chars", mcp.Description("Preview length in characters (default from config)")),
)

var previewToolDef = mcp.NewTool("fortune_preview",
	mcp.WithDescription("One-line preview of a fortune answer: sections and tips joined by ' • ', truncated with an ellipsis."),
	mcp.WithString("answer", mcp.Required(), mcp.Description("Raw fortune text")),
	mcp.WithNumber("max_chars", mcp.Description("Maximum preview length in characters (default from config)")),
)

var formatDateToolDef = mcp.NewTool("fortune_format_date",
	mcp.WithDescription("Render a timestamp as a medium date with short time. Accepts ISO/RFC3339 strings and epoch milliseconds; unrecognized values yield an empty string."),
	mcp.WithString("value", mcp.Required(), mcp.Description("Date string or epoch milliseconds")),
	mcp.WithString("locale", mcp.Description("en, en-GB or th (default from config)")),
)

var saveToolDef = mcp.NewTool("fortune_save",
	mcp.WithDescription("Store a fortune document for a user. The id is generated when omitted."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the fortune")),
	mcp.WithString("id", mcp.Description("Fortune id (generated when omitted)")),
	mcp.WithString("answer", mcp.Description("Fortune text; shorthand for payload.answer")),
	mcp.WithObject("payload", mcp.Description("Full fortune document (answer, createdAt, language, style, period, summary, ...)")),
	mcp.WithString("mode", mcp.Description("Collision behavior"), mcp.Enum("error", "replace")),
)

var fetchToolDef = mcp.NewTool("fortune_fetch",
	mcp.WithDescription("Fetch one fortune of a user with parsed sections, preview and formatted date."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the fortune")),
	mcp.WithString("id", mcp.Required(), mcp.Description("Fortune id")),
	mcp.WithBoolean("include_deleted", mcp.Description("Also return soft-deleted fortunes")),
	mcp.WithObject("fallback", mcp.Description("Document to enrich and return when the fortune is not stored")),
)

var historyToolDef = mcp.NewTool("fortune_history",
	mcp.WithDescription("List a user's fortunes, newest first, with previews."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the fortunes")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)"), mcp.Min(1), mcp.Max(100)),
	mcp.WithNumber("offset", mcp.Description("Items to skip"), mcp.Min(0)),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted fortunes")),
)

var latestToolDef = mcp.NewTool("fortune_latest",
	mcp.WithDescription("Most recent fortune of a user, or null."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the fortunes")),
)

var searchToolDef = mcp.NewTool("fortune_search",
	mcp.WithDescription("Case-insensitive substring search over a user's fortune answers."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the fortunes")),
	mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)"), mcp.Min(1), mcp.Max(100)),
	mcp.WithNumber("offset", mcp.Description("Items to skip"), mcp.Min(0)),
)

var deleteToolDef = mcp.NewTool("fortune_delete",
	mcp.WithDescription("Soft-delete a fortune. It stays recoverable until purged."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the fortune")),
	mcp.WithString("id", mcp.Required(), mcp.Description("Fortune id")),
)

var purgeToolDef = mcp.NewTool("fortune_purge",
	mcp.WithDescription("Permanently remove soft-deleted fortunes."),
	mcp.WithString("user_id", mcp.Description("Only purge this user's fortunes")),
	mcp.WithNumber("older_than_days", mcp.Description("Only purge fortunes deleted more than N days ago"), mcp.Min(0)),
)

var exportToolDef = mcp.NewTool("fortune_export",
	mcp.WithDescription("Write fortunes to a JSONL file (.jsonl, or zstd-compressed .jsonl.zst)."),
	mcp.WithString("path", mcp.Description("Destination (default ~/.palmscan/exports/<user>-<timestamp>.jsonl)")),
	mcp.WithString("user_id", mcp.Description("Only export this user's fortunes")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted fortunes")),
	mcp.WithBoolean("compress", mcp.Description("Use .jsonl.zst for the default path")),
)

var importToolDef = mcp.NewTool("fortune_import",
	mcp.WithDescription("Load fortunes from an export file."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Export file (.jsonl or .jsonl.zst)")),
	mcp.WithString("mode", mcp.Description("Collision behavior (error is all-or-nothing)"), mcp.Enum("error", "replace", "skip")),
)

var predictToolDef = mcp.NewTool("fortune_predict",
	mcp.WithDescription("Request a new fortune for a saved palm scan from the fortune service and store it."),
	mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the scan")),
	mcp.WithString("scan_id", mcp.Required(), mcp.Description("Scan id returned by the scan flow")),
	mcp.WithString("language", mcp.Description("th or en (default from config)")),
	mcp.WithString("style", mcp.Description("Tone of the reading (default from config)")),
	mcp.WithString("model", mcp.Description("Model name (default from config)")),
	mcp.WithString("period", mcp.Description("Prediction period (default today)")),
)
