// Package biz implements the retrieval and ranking pipeline for repository
// Q&A: intent classification, query expansion, hybrid retrieval, multi-tier
// caching, LLM reranking, context assembly, cache-aware generation, and
// per-repository admission control.
package biz
