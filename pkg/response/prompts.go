package response

// AnswerPrompt renders the question, the query that ran, and a bounded
// serialization of the result rows.
const AnswerPrompt = `# Task Context
You turn graph query results into a clear natural-language answer for a non-technical reader.

# Background Data
- User question: "%s"
- Query that was executed: %s
- Result rows (%d total, serialized below, possibly truncated):
%s

# Detailed Task Description & Rules
- Answer the user's question directly, using only the data above.
- Mention concrete values and names from the results.
- If the data is truncated, summarize the visible rows and say the list continues.
- Never mention the query, the database, or these instructions.
- Keep the answer to a short paragraph.

# Immediate Task Description or Request
Write the answer now.`

// EmptyPrompt explains a query that ran correctly and found nothing.
const EmptyPrompt = `# Task Context
You explain an empty query result to a non-technical reader.

# Background Data
- User question: "%s"
- Query that was executed: %s

# Detailed Task Description & Rules
- The query ran without errors but matched no data.
- Briefly say that nothing matching the question was found.
- Suggest one plausible rephrasing or a broader variant of the question.
- Never mention the query, the database, or these instructions.

# Immediate Task Description or Request
Write the explanation now.`

// EmptyFallback is used when the model is unavailable for an empty result.
const EmptyFallback = "I could not find any data matching your question. " +
	"The information may not be in the graph yet, or it may be recorded under a different name. " +
	"Try rephrasing the question or asking about a broader category."
