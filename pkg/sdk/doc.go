// Package tierscore embeds the sustainability tier classifier in a Go program
// without the HTTP service in front of it.
//
//	client, _ := tierscore.New(ctx,
//	    tierscore.WithManifest("artifacts/manifest.yaml"),
//	    tierscore.WithSessions(2),
//	)
//	defer client.Close()
//
//	p, _ := client.PredictFile(ctx, "bottle.jpg", tierscore.WithTopK(3))
//	fmt.Println(p.Class, p.Score, p.Confidence)
//
// Predictions can be memoized in Valkey with WithValkey. Operations are logged
// through slog and counted on a Prometheus registerer when those options are set.
package tierscore
