// Package live watches a fixed list of Twitch broadcasters and announces each
// one the first time it is seen going live.
//
// The Monitor polls a StatusFetcher for every tracked broadcaster on a fixed
// interval, one broadcaster at a time, and calls the Notifier only on the
// offline -> online edge. The last-known online flag stays true for the rest of
// the stream and re-arms once the feed reports the broadcaster offline again.
//
// Failure handling per broadcaster:
//   - transport errors (ErrTransport or anything unclassified) are logged and
//     skipped; the last-known state is kept so one flaky lookup cannot trigger a
//     duplicate announcement or hide a real one.
//   - malformed responses (ErrMalformedResponse) are logged and treated as
//     offline.
//
// State lives in memory only and is lost on restart.
package live
