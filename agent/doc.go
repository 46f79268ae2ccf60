// Package agent contains the specialist nodes of the orchestration graph.
//
// Every specialist implements Specialist: it reads the request state and
// returns an update carrying its answer plus the question/answer turns to
// append to history. Three kinds exist:
//
//  1. Retrieval-backed (RAGAgent): QA, Tutor and Planner fetch k fragments
//     for the question, embed them as a context block in the instructions and
//     make one completion call
//  2. Model-only: ReasoningAgent answers step by step, SearchAgent drives a
//     tool loop over web search
//  3. Post-processing: StudyPlanAgent appends a study plan to an existing
//     answer and degrades to the unchanged answer when planning fails
//
// Specialists never retry; model level retries belong to model.WithRetry.
package agent
