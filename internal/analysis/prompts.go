package analysis

import (
	"fmt"
	"strings"
)

const scriptSystemPrompt = `You are a Python script generator. Write a complete, executable Python script that:
1. Reads and analyzes the file '` + inputFileName + `'
2. Answers this user query: %s
3. Prints clear, formatted results
4. Handles errors gracefully (file not found, encoding issues, etc.)
5. Uses try-except blocks around file operations
6. Validates data before processing

IMPORTANT FORMATTING RULES:
- Return ONLY pure Python code
- Do NOT include markdown formatting like code fences
- Do NOT include any explanations or comments outside the code
- The response should start directly with Python code (import statements, functions, etc.)
- The script should be completely self-contained and executable as a .py file
- Always include proper error handling and data validation

Start your response immediately with Python code, nothing else.`

func buildScriptMessages(prompt string) (system, user string) {
	return fmt.Sprintf(scriptSystemPrompt, prompt), "Write a Python script to: " + prompt
}

func buildDecisionPrompt(prompt string, res ExecutionResult) string {
	return fmt.Sprintf(`Original user query: %s

Script execution result:
Success: %t
Output: %s
Error: %s

Based on this output, respond with either:
- "DONE: [final answer summary]" if the query is fully answered
- "CONTINUE: [what additional processing is needed]" if more scripts are required

Be concise in your response.`, prompt, res.Success, res.Stdout, res.Stderr)
}

func buildGroundedPrompt(prompt string, contextBlock string) string {
	return fmt.Sprintf(`Based on the following context, answer the user's question thoroughly and accurately:

CONTEXT:
%s

QUESTION: %s

Instructions:
- Provide a detailed, accurate answer based only on the information in the context
- If comparing to previous periods, look for historical data in the context
- Include specific numbers and counts when available
- If CAPA information is mentioned, summarize it
- Be precise and factual in your response`, contextBlock, prompt)
}

// stripCodeFences removes incidental markdown fencing the model may wrap
// around generated code despite being told not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```python") {
		s = s[len("```python"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-3]
	}
	return strings.TrimSpace(s)
}
