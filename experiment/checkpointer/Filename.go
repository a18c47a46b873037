package checkpointer

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	filePrefix    = "checkpoint_epoch"
	fileExtension = ".gob"
)

// filename returns the name of the checkpoint file for an epoch
func filename(epoch int) string {
	return fmt.Sprintf("%v%v%v", filePrefix, epoch, fileExtension)
}

// epochOf returns the epoch of a checkpoint filename and whether name
// is a checkpoint filename at all
func epochOf(name string) (int, bool) {
	if !strings.HasPrefix(name, filePrefix) ||
		!strings.HasSuffix(name, fileExtension) {
		return 0, false
	}

	num := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix),
		fileExtension)
	epoch, err := strconv.Atoi(num)
	if err != nil || epoch < 0 {
		return 0, false
	}
	return epoch, true
}
