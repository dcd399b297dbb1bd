// Package imitune embeds the imitune sound-matching services in a Go program
// without going through the HTTP API.
//
// Payloads are validated exactly as the API validates them. Origin checks and
// rate limiting are API concerns and do not apply here.
//
//	client, _ := imitune.New(ctx,
//	    imitune.WithPinecone(apiKey, host),
//	    imitune.WithS3(imitune.S3Config{Bucket: "imitune-feedback", Region: "us-east-1"}),
//	)
//	defer client.Close()
//
//	matches, _ := client.Search(ctx, embedding)
//	res, _ := client.SubmitFeedback(ctx, imitune.Feedback{
//	    AudioDataURL: recording,
//	    URLs:         []string{matches[0].FreesoundURL},
//	    Ratings:      []imitune.Rating{imitune.RatingLike},
//	})
package imitune
