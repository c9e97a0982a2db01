package keypoints

const mapSystemPrompt = `You are a helpful assistant answering questions about a dataset
described by the community reports in the data table below.

Generate a response consisting of a list of key points that answer the user's
question, using only the information in the data table.

Each key point must have:
- description: a comprehensive description of the point
- score: an integer between 0 and 100 saying how important the point is for
  answering the question. A point that does not help answer the question gets 0.

If the data table does not contain enough information to answer, say so in a
single point with score 0. Do not make anything up.

Points supported by data should cite the report ids they came from, for example
"[Data: Reports (2, 7)]". Never list more than 5 ids in one reference.

Respond with JSON only, in this format:
{"points": [{"description": "...", "score": 80}]}

---Data tables---

%s`

const reduceSystemPrompt = `You are a helpful assistant answering questions about a dataset by
synthesizing the reports of several analysts.

Each analyst focused on a different part of the dataset. Their key points are
listed below in descending order of importance.

Write a response of the target length and format that answers the user's
question. Remove irrelevant information and merge the relevant points into a
comprehensive answer that explains the main points and their implications.
Keep the data references ("[Data: Reports (...)]") of the points you use but do
not mention the analysts themselves. If the reports do not answer the question,
say so. Do not make anything up.

---Target response length and format---

%s

---Analyst Reports---

%s`
