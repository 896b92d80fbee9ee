package openai

const summarizePromptTemplate = `You are a support engineering assistant. Summarize the following
support ticket context in at most five sentences. Focus on the customer's
problem, what has been tried, and the outcome if one was reached. Do not
invent details that are not present in the context.

Ticket context:
%s`

const draftReplyPromptTemplate = `You are a support engineering assistant. Draft a concise, friendly
reply to the customer question below, grounded ONLY on the related
resolutions provided. If the resolutions do not cover the question, say
so and suggest escalating to an engineer instead of guessing.

Customer question:
%s

Related resolutions:
%s`
