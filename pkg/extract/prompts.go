package extract

const factExtractionUserPrompt = `You are a personal information organizer. Extract the salient, durable facts about the user from the conversation below.

Rules:
- Record preferences, plans, relationships, and personal details worth remembering across sessions.
- Each fact must be a short, self-contained statement.
- Do not record transient small talk or the assistant's own remarks.
- Return a JSON object of the form {"facts": ["fact 1", "fact 2"]}.
- Return {"facts": []} when there is nothing worth remembering.`

const factExtractionAgentPrompt = `You are organizing an AI agent's working memory. Extract durable facts about the agent's own behavior, commitments, and acquired knowledge from the conversation below.

Rules:
- Record what the agent promised, learned, decided, or was instructed to do.
- Each fact must be a short, self-contained statement.
- Return a JSON object of the form {"facts": ["fact 1", "fact 2"]}.
- Return {"facts": []} when there is nothing worth remembering.`

const graphExtractionPrompt = `Extract entity relationships from the text below as triples.

Rules:
- Use short lowercase entity names.
- Use snake_case relation names (likes, works_at, lives_in, married_to).
- Return a JSON object of the form {"entities": [{"source": "...", "relationship": "...", "destination": "..."}]}.
- Return {"entities": []} when no relationships are present.`

const entityExtractionPrompt = `List the key entities (people, places, organizations, topics) mentioned in the text below.

Rules:
- Return at most 3 entities as a single comma-separated line.
- Return an empty line when there are none.`
