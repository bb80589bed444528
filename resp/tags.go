package resp

// Tag is the first byte of a RESP frame, identifying its wire type.
type Tag byte

const (
	TagSimpleString Tag = '+'
	TagError        Tag = '-'
	TagInteger      Tag = ':'
	TagBulkString   Tag = '$'
	TagArray        Tag = '*'
	TagNull         Tag = '_'
	TagBoolean      Tag = '#'
	TagDouble       Tag = ','
	TagBlobError    Tag = '!'
	TagVerbatim     Tag = '='
	TagMap          Tag = '%'
	TagSet          Tag = '~'
	TagPush         Tag = '>'

	crlf = "\r\n"
)

// aggregateKind reports whether t introduces an aggregate frame and, if so,
// how many wire "children" each logical element occupies (2 for maps, 1
// otherwise).
func aggregateKind(t Tag) (isAggregate bool, childMultiplier int) {
	switch t {
	case TagArray, TagSet, TagPush:
		return true, 1
	case TagMap:
		return true, 2
	default:
		return false, 0
	}
}

// isBulkLike reports whether t is a length-prefixed payload frame (as
// opposed to a line-terminated scalar frame).
func isBulkLike(t Tag) bool {
	switch t {
	case TagBulkString, TagBlobError, TagVerbatim:
		return true
	default:
		return false
	}
}
