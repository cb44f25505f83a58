package mcp

import "github.com/mark3labs/mcp-go/mcp"

var profileGetToolDef = mcp.NewTool("profile_get",
	mcp.WithDescription("Return the profile: birth date, life expectancy, setup state, current age and the span of years on the grid."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var profileSetToolDef = mcp.NewTool("profile_set",
	mcp.WithDescription("Complete or redo setup. Birth date must not be in the future; life expectancy must be 50-150. Optionally replaces the education periods in the same save."),
	mcp.WithString("birth_date", mcp.Required(), mcp.Description("Birth date, YYYY-MM-DD")),
	mcp.WithNumber("life_expectancy", mcp.Required(), mcp.Description("Life expectancy in years")),
	mcp.WithObject("periods", mcp.Description("Education periods in the document shape (see periods_get)")),
)

var periodsGetToolDef = mcp.NewTool("periods_get",
	mcp.WithDescription("Return the education periods. Singleton stages are objects {start,end}; university and other are lists; dates are YYYY-MM."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var periodsSetToolDef = mcp.NewTool("periods_set",
	mcp.WithDescription("Replace education periods. Pass `periods` to replace all stages, or `stage` with `entries` to replace one stage."),
	mcp.WithObject("periods", mcp.Description("Full education periods object")),
	mcp.WithString("stage", mcp.Description("Stage id, e.g. elementary, university, other")),
	mcp.WithBoolean("custom", mcp.Description("Allow a `stage` outside the known set")),
	mcp.WithArray("entries", mcp.Description("Entries for `stage`: [{start,end,name?,leavePeriods?}]. Empty clears the stage."),
		mcp.Items(map[string]any{"type": "object"})),
)

var periodResolveToolDef = mcp.NewTool("period_resolve",
	mcp.WithDescription("List the education periods covering a date, highest priority first."),
	mcp.WithNumber("year", mcp.Required()),
	mcp.WithNumber("month", mcp.Required(), mcp.Description("1-12")),
	mcp.WithNumber("day", mcp.Description("Day of month; defaults to 1")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var memoGetToolDef = mcp.NewTool("memo_get",
	mcp.WithDescription("Read the memo of a month, week (1-4) or day. Missing memos read as empty."),
	mcp.WithString("level", mcp.Required(), mcp.Enum("month", "week", "day")),
	mcp.WithNumber("year", mcp.Required()),
	mcp.WithNumber("month", mcp.Required(), mcp.Description("1-12")),
	mcp.WithNumber("week", mcp.Description("1-4, for level=week")),
	mcp.WithNumber("day", mcp.Description("Day of month, for level=day")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var memoSetToolDef = mcp.NewTool("memo_set",
	mcp.WithDescription("Write the memo of a month, week or day. An empty memo (with importance 0 for days) deletes the record."),
	mcp.WithString("level", mcp.Required(), mcp.Enum("month", "week", "day")),
	mcp.WithNumber("year", mcp.Required()),
	mcp.WithNumber("month", mcp.Required(), mcp.Description("1-12")),
	mcp.WithNumber("week", mcp.Description("1-4, for level=week")),
	mcp.WithNumber("day", mcp.Description("Day of month, for level=day")),
	mcp.WithString("memo", mcp.Description("Memo text (markdown)")),
	mcp.WithNumber("importance", mcp.Description("0-5 stars, for level=day. Omit to keep the stored rating")),
)

var topDaysToolDef = mcp.NewTool("top_days",
	mcp.WithDescription("Return up to three most important days of a month, or of one week when `week` is given."),
	mcp.WithNumber("year", mcp.Required()),
	mcp.WithNumber("month", mcp.Required(), mcp.Description("1-12")),
	mcp.WithNumber("week", mcp.Description("1-4")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var gridYearToolDef = mcp.NewTool("grid_year",
	mcp.WithDescription("Render a grid view: the 12 months of a year, or the weeks of `month`, or the days of `week`."),
	mcp.WithNumber("year", mcp.Required()),
	mcp.WithNumber("month", mcp.Description("1-12; returns the month view")),
	mcp.WithNumber("week", mcp.Description("1-4, with month; returns the week view")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var statsToolDef = mcp.NewTool("stats",
	mcp.WithDescription("Return months lived and remaining, memo counts and completion rate. Requires setup."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("data_export",
	mcp.WithDescription("Write the whole document to a JSON file. Defaults to ~/.lifegrid/exports/."),
	mcp.WithString("path", mcp.Description("Destination .json path")),
	mcp.WithString("label", mcp.Description("Added to the default file name")),
)

var importToolDef = mcp.NewTool("data_import",
	mcp.WithDescription("Merge a JSON export into the current document. Top-level keys in the file replace the current ones; a snapshot is taken first."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .json path")),
)
