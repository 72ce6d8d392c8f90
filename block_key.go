package blocking

import (
	"fmt"
	"strconv"
	"strings"
)

// TagKey appends the predicate ordinal to a raw key. Ordinals contain no
// ":", so splitting at the last ":" recovers both parts and keys emitted by
// different predicates never collide.
func TagKey(raw string, ordinal int) string {
	return raw + ":" + strconv.Itoa(ordinal)
}

// SplitKey reverses TagKey.
func SplitKey(tagged string) (raw string, ordinal int, err error) {
	i := strings.LastIndexByte(tagged, ':')
	if i < 0 {
		return "", 0, fmt.Errorf("block key %q carries no predicate ordinal", tagged)
	}
	ordinal, err = strconv.Atoi(tagged[i+1:])
	if err != nil || ordinal < 0 {
		return "", 0, fmt.Errorf("block key %q carries an invalid predicate ordinal", tagged)
	}
	return tagged[:i], ordinal, nil
}
