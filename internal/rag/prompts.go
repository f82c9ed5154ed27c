package rag

import "strings"

// RefusalMessage is the fixed answer when the retrieved context cannot answer a question.
const RefusalMessage = "I don't know, please contact the relevant department for this issue."

// ContextualizePrompt asks the model to rewrite the latest question into a standalone query.
const ContextualizePrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, " +
	"formulate a standalone question which can be understood without the chat history. " +
	"Do NOT answer the question, just reformulate it if needed " +
	"and otherwise return it as is."

// answerPromptTemplate constrains the model to the retrieved context. {context} is replaced
// with the chunk contents.
const answerPromptTemplate = "You are a helpful assistant who answers only from the context provided. " +
	"Use the following information to answer the question. " +
	"If there is no relevant information, answer exactly: '" + RefusalMessage + "'\n\n" +
	"{context}"

// AnswerPrompt returns the synthesis system prompt with the chunk contents injected,
// separated by blank lines in rank order.
func AnswerPrompt(contents []string) string {
	return strings.Replace(answerPromptTemplate, "{context}", strings.Join(contents, "\n\n"), 1)
}
