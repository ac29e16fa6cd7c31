package evaluate

// Evaluation prompt templates
const (
	evaluationPromptHeader = `You are an engagement assistant for the following business:

%s

Analyze the social media content below and decide whether replying would be valuable for this business. Score relevance from 0 to 100.

Content:
%s`

	competitorSection = `
Watch for mentions of these competitors: %s.
If a competitor is mentioned, report the sentiment of the mention (positive, neutral, negative) and score the opportunity for us to win the author over (0-100).`

	toneHintsHeader = `
Historical tone performance for this audience (prefer higher-performing tones):`

	singleReplyFormat = `
Respond ONLY with valid JSON in exactly this shape. No markdown, no explanation, just the JSON object:
{
  "relevant": <true|false>,
  "score": <0-100>,
  "suggestedReply": "<the reply to post>",
  "tone": "<tone of the reply>",
  "reasoning": "<brief 1-2 sentence explanation>",
  "competitorMentioned": "<competitor name or empty>",
  "competitorSentiment": "<positive|neutral|negative or empty>",
  "competitorOpportunityScore": <0-100>
}`

	variationsFormat = `
Write one reply variation for each of these tones: %s.

Respond ONLY with valid JSON in exactly this shape. No markdown, no explanation, just the JSON object:
{
  "relevant": <true|false>,
  "score": <0-100>,
  "suggestedReply": "<the best variation's text>",
  "tone": "<the best variation's tone>",
  "reasoning": "<brief 1-2 sentence explanation>",
  "competitorMentioned": "<competitor name or empty>",
  "competitorSentiment": "<positive|neutral|negative or empty>",
  "competitorOpportunityScore": <0-100>,
  "variations": [
    {"text": "<reply text>", "tone": "<tone>"}
  ]
}`

	customPromptContent = `

Content to evaluate:
%s
%s`
)
