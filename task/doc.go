// Package task assembles the cache, retry policy, resource pool and worker
// pool around a user function.
//
// A task is a function of a resource and an input:
//
//	fetch := func(ctx context.Context, c *http.Client, url string) (task.Output[Page], error) {
//		page, err := get(ctx, c, url)
//		if err != nil {
//			return task.Output[Page]{}, err
//		}
//		if page.Partial {
//			return task.DontCache(page), nil
//		}
//		return task.Done(page), nil
//	}
//
//	o, err := task.New("fetch", clients, fetch,
//		task.WithParallel(8),
//		task.WithCache(task.CacheOn),
//		task.WithMaxRetry(3),
//		task.WithRetryWait(time.Second),
//	)
//	pages, err := o.RunBatch(ctx, urls)
//
// For every input the orchestrator checks the cache, runs the function under
// the retry policy with a pooled resource, writes the result back and keeps
// results in input order. Run treats a single input as a one element batch.
//
// Go and GoOne run a batch in the background and return a pool.Future.
// Queue starts a long-lived consumer that accepts inputs over many Put calls,
// skips inputs it has already seen and writes one aggregated output when it
// is closed.
package task
