package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// ProgressCallback defines the function signature for progress reporting.
type ProgressCallback func(current, total int, message string)

// ErrNotTweet is returned for a line that is valid JSON but lacks the tweet fields.
var ErrNotTweet = errors.New("record is not a tweet")

// maxLine bounds a single raw tweet line.
const maxLine = 16 << 20

// userFields maps output names to fields of the tweet's user object.
var userFields = [][2]string{
	{"user", "screen_name"},
	{"user_name", "name"},
	{"description", "description"},
	{"location", "location"},
	{"protected", "protected"},
	{"verified", "verified"},
	{"created", "created_at"},
	{"followers", "followers_count"},
	{"friends", "friends_count"},
	{"listed", "listed_count"},
	{"favourites", "favourites_count"},
	{"statuses", "statuses_count"},
	{"default_profile", "default_profile"},
	{"default_image", "default_profile_image"},
}

// tweetFields maps output names to top-level tweet fields.
var tweetFields = [][2]string{
	{"time", "created_at"},
	{"id", "id"},
	{"text", "full_text"},
	{"retweet_count", "retweet_count"},
	{"favourite_count", "favorite_count"},
	{"reply", "in_reply_to_screen_name"},
	{"language", "lang"},
}

type object map[string]json.RawMessage

func (o object) child(key string) object {
	var c object
	if err := json.Unmarshal(o[key], &c); err != nil {
		return nil
	}
	return c
}

func (o object) value(key string) json.RawMessage {
	if v, ok := o[key]; ok {
		return v
	}
	return json.RawMessage("null")
}

type media struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
}

// Flatten converts one raw tweet into a flat record with user, place, image, retweet
// (rt_*) and quote (qt_*) fields. A retweet's truncated text is replaced with
// "RT @user: " followed by the full retweeted text.
func Flatten(raw []byte) (*Record, error) {
	var tw object
	if err := json.Unmarshal(raw, &tw); err != nil {
		return nil, err
	}
	if tw == nil {
		return nil, ErrNotTweet
	}
	user := tw.child("user")
	if user == nil {
		return nil, fmt.Errorf("%w: missing user", ErrNotTweet)
	}
	if _, ok := tw["full_text"]; !ok {
		if _, ok := tw["text"]; !ok {
			return nil, fmt.Errorf("%w: missing text", ErrNotTweet)
		}
		tw["full_text"] = tw["text"]
	}

	rec := NewRecord()
	addStatus(rec, "", tw, user)
	rec.Set("entity_image_url", "")
	rec.Set("extended_entity_image_urls", []string{})
	rec.Set("place", "")
	rec.Set("latitude", "")
	rec.Set("longitude", "")

	if place, ok := tw["place"]; ok {
		rec.Set("place", place)
	}
	var coords struct {
		Coordinates []float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(tw.value("coordinates"), &coords); err == nil && len(coords.Coordinates) >= 2 {
		rec.Set("longitude", coords.Coordinates[0])
		rec.Set("latitude", coords.Coordinates[1])
	}

	if photos := photoURLs(tw.child("entities")); len(photos) > 0 {
		rec.Set("entity_image_url", photos[0])
	}
	if photos := photoURLs(tw.child("extended_entities")); len(photos) > 0 {
		rec.Set("extended_entity_image_urls", photos)
	}

	if rt := tw.child("retweeted_status"); rt != nil {
		addStatus(rec, "rt_", rt, rt.child("user"))
	}
	if qt := tw.child("quoted_status"); qt != nil {
		addStatus(rec, "qt_", qt, qt.child("user"))
	}

	text, _ := rec.String("text")
	if rtText, ok := rec.String("rt_text"); ok && strings.HasPrefix(text, "RT @") {
		rec.Set("text", strings.SplitN(text, ":", 2)[0]+": "+rtText)
	}
	return rec, nil
}

func addStatus(rec *Record, prefix string, status, user object) {
	for _, f := range userFields {
		rec.Set(prefix+f[0], user.value(f[1]))
	}
	for _, f := range tweetFields {
		v := status.value(f[1])
		if f[1] == "full_text" {
			if _, ok := status["full_text"]; !ok {
				v = status.value("text")
			}
		}
		rec.Set(prefix+f[0], v)
	}
}

func photoURLs(entities object) []string {
	if entities == nil {
		return nil
	}
	var items []media
	if err := json.Unmarshal(entities.value("media"), &items); err != nil {
		return nil
	}
	var urls []string
	for _, m := range items {
		if m.Type == "photo" && m.MediaURLHTTPS != "" {
			urls = append(urls, m.MediaURLHTTPS)
		}
	}
	return urls
}

// FileResult counts the lines of one raw file.
type FileResult struct {
	File    string
	Records int
	Skipped int
}

// ExtractFile flattens every tweet line of in and writes JSON lines to out.
// Lines that are not tweets are skipped.
func ExtractFile(in, out string, logger logrus.FieldLogger) (FileResult, error) {
	res := FileResult{File: filepath.Base(in)}
	src, err := os.Open(in) // #nosec G304
	if err != nil {
		return res, fmt.Errorf("failed to open %s: %w", in, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.WithError(err).Warn("failed to close input")
		}
	}()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	reader := bufio.NewReaderSize(src, 64<<10)
	line := 0
	for {
		data, err := readLine(reader)
		if len(data) > 0 {
			line++
			rec, ferr := Flatten(data)
			if ferr != nil {
				res.Skipped++
				logger.WithError(ferr).WithFields(logrus.Fields{"file": res.File, "line": line}).Debug("skipping line")
			} else {
				if err := enc.Encode(rec); err != nil {
					return res, fmt.Errorf("failed to encode line %d: %w", line, err)
				}
				res.Records++
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("failed to read %s: %w", in, err)
		}
	}

	if err := os.WriteFile(out, buf.Bytes(), 0640); err != nil { // #nosec G306
		return res, fmt.Errorf("failed to write %s: %w", out, err)
	}
	return res, nil
}

// readLine returns the next non-empty line without its terminator.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		line = append(line, chunk...)
		if len(line) > maxLine {
			// Drain the rest of an oversized line and report it as garbage.
			for isPrefix && err == nil {
				_, isPrefix, err = r.ReadLine()
			}
			return []byte("{"), err
		}
		if err != nil || !isPrefix {
			return bytes.TrimSpace(line), err
		}
	}
}

// ExtractFolder flattens every file of readFolder into saveFolder, keeping file names.
func ExtractFolder(ctx context.Context, readFolder, saveFolder string, logger logrus.FieldLogger, progressCb ProgressCallback) ([]FileResult, error) {
	if progressCb == nil {
		progressCb = func(int, int, string) {}
	}
	entries, err := os.ReadDir(readFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", readFolder, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if err := os.MkdirAll(saveFolder, 0750); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", saveFolder, err)
	}

	var results []FileResult
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		progressCb(i, len(names), name)
		res, err := ExtractFile(filepath.Join(readFolder, name), filepath.Join(saveFolder, name), logger)
		if err != nil {
			logger.WithError(err).WithField("file", name).Error("extraction failed, continuing")
			continue
		}
		logger.WithFields(logrus.Fields{"file": name, "records": res.Records, "skipped": res.Skipped}).Info("file extracted")
		results = append(results, res)
	}
	progressCb(len(names), len(names), "done")
	return results, nil
}
