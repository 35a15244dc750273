// Package qacache provides an embeddable Go client for the tiered question-answering cache.
//
// A question is answered by the first tier that can serve it:
//   - fast cache: exact fingerprint hit in Redis, Valkey or Badger
//   - durable store: exact fingerprint hit in SQLite
//   - curated match: a gold answer similar enough to the question
//   - prior match: a previously generated answer similar enough to the question
//   - generation: an LLM answer, grounded in curated references when any are close
//
// Generated answers are written back so the next identical question is served from cache.
//
//	client, _ := qacache.New(ctx,
//	    qacache.WithSQLite("data/qacache.db"),
//	    qacache.WithRedis("localhost:6379", ""),
//	    qacache.WithOpenAI(qacache.OpenAIConfig{
//	        APIKey:          os.Getenv("OPENAI_API_KEY"),
//	        EmbeddingModel:  "text-embedding-3-small",
//	        GenerationModel: "gpt-4o-mini",
//	    }),
//	)
//	defer client.Close()
//
//	ans, _ := client.Ask(ctx, "What is the refund policy?")
//	fmt.Println(ans.Source, ans.Text)
package qacache
