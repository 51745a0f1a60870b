package llm

// generationSystemPrompt frames the model as a workflow planner.
const generationSystemPrompt = `You are a workflow planner. You turn a user's goal into a concrete,
ordered list of tasks that software agents can execute. Respond with JSON
only, no prose and no markdown fences.`

// generationPrompt asks for a workflow plan. The response schema:
//
//	{
//	  "title": "...",
//	  "description": "...",
//	  "tasks": [
//	    {"title": "...", "description": "...", "priority": 1,
//	     "estimated_duration": "30m", "depends_on": [0]}
//	  ]
//	}
//
// depends_on holds zero-based indices into the tasks array.
const generationPrompt = `Create a workflow for the following goal.

Goal:
%s
%s
Return JSON with this exact shape:
{"title": string, "description": string, "tasks": [{"title": string, "description": string, "priority": number, "estimated_duration": string, "depends_on": [number]}]}

Rules:
- 3 to 10 tasks, each independently executable by one agent.
- priority: 1 (highest) to 5 (lowest).
- estimated_duration: a rough human estimate like "15m" or "2h".
- depends_on: zero-based indices of prerequisite tasks, [] if none.`

// decompositionSystemPrompt frames the model as a task splitter.
const decompositionSystemPrompt = `You split one task into smaller subtasks. Respond with JSON only, no
prose and no markdown fences.`

// decompositionPrompt asks for replacement subtasks for a single task.
const decompositionPrompt = `Split the following task into 2 to 5 smaller subtasks that together
accomplish it.

Task title: %s
Task description: %s

Return JSON with this exact shape:
[{"title": string, "description": string, "priority": number, "estimated_duration": string, "depends_on": [number]}]

depends_on holds zero-based indices into the returned array, [] if none.`

// executionSystemPrompt frames the model as a task executor.
const executionSystemPrompt = `You are an autonomous agent executing one task from a workflow. Produce
the task's deliverable directly and completely.`

// executionPrompt asks for the result of one task.
const executionPrompt = `Execute this task and return its result.

Workflow: %s
Task: %s
Details: %s`
