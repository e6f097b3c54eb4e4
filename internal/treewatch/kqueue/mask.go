package kqueue

// Inotify mask bits, mirrored here (rather than imported from
// golang.org/x/sys/unix) so this file — and anything that only needs the
// bit values, like the event pump's filtering logic — compiles on every
// GOOS. The Linux-only adapter in kqueue_linux.go uses the unix package's
// own constants when talking to the kernel; these two sets are numerically
// identical by the stable inotify(7) ABI.
const (
	IN_ACCESS        uint32 = 0x00000001
	IN_MODIFY        uint32 = 0x00000002
	IN_ATTRIB        uint32 = 0x00000004
	IN_CLOSE_WRITE   uint32 = 0x00000008
	IN_CLOSE_NOWRITE uint32 = 0x00000010
	IN_OPEN          uint32 = 0x00000020
	IN_MOVED_FROM    uint32 = 0x00000040
	IN_MOVED_TO      uint32 = 0x00000080
	IN_CREATE        uint32 = 0x00000100
	IN_DELETE        uint32 = 0x00000200
	IN_DELETE_SELF   uint32 = 0x00000400
	IN_MOVE_SELF     uint32 = 0x00000800

	IN_UNMOUNT    uint32 = 0x00002000
	IN_Q_OVERFLOW uint32 = 0x00004000
	IN_IGNORED    uint32 = 0x00008000

	IN_ONLYDIR     uint32 = 0x01000000
	IN_DONT_FOLLOW uint32 = 0x02000000
	IN_EXCL_UNLINK uint32 = 0x04000000
	IN_MASK_ADD    uint32 = 0x20000000
	IN_ISDIR       uint32 = 0x40000000
	IN_ONESHOT     uint32 = 0x80000000

	IN_CLOSE uint32 = IN_CLOSE_WRITE | IN_CLOSE_NOWRITE
	IN_MOVE  uint32 = IN_MOVED_FROM | IN_MOVED_TO
)
