package notify

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/interfaces"
)

// ObjectNotifier archives each digest as alerts/{date}.md
type ObjectNotifier struct {
	objects interfaces.ObjectStorage
	logger  arbor.ILogger
}

// NewObjectNotifier creates an ObjectNotifier
func NewObjectNotifier(objects interfaces.ObjectStorage, logger arbor.ILogger) *ObjectNotifier {
	return &ObjectNotifier{objects: objects, logger: logger}
}

// ArchiveKey is the object key of the digest for runDate
func ArchiveKey(runDate string) string {
	return "alerts/" + runDate + ".md"
}

// Publish stores the body with the subject as its first line. A rerun for
// the same date replaces the archived digest.
func (n *ObjectNotifier) Publish(ctx context.Context, subject, body string) error {
	key := ArchiveKey(RunDateFrom(ctx))
	content := fmt.Sprintf("<!-- %s -->\n%s", truncateSubject(subject), body)

	if err := n.objects.Put(ctx, key, []byte(content), "text/markdown; charset=utf-8"); err != nil {
		return fmt.Errorf("failed to archive digest %s: %w", key, err)
	}

	n.logger.Debug().Str("key", key).Msg("Digest archived")
	return nil
}
