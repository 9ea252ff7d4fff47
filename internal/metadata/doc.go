// Package metadata persists the catalog of downloaded images as an
// append-only CSV file and reloads it to resume an interrupted run.
//
// The file has the header
//
//	filename,image_url,page_url,content_hash
//
// written exactly once, followed by one row per kept image. Files written by
// older versions without the content_hash column are still readable.
package metadata
