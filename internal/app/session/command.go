package session

// CommandType represents a user command.
type CommandType int

const (
	CmdPlayPause CommandType = iota
	CmdSeekForward
	CmdSeekBack
	CmdNextUnit
	CmdPrevUnit
	CmdSeekToUnit
	CmdSpeedUp
	CmdSpeedDown
	CmdSetSpeed
	CmdVolumeUp
	CmdVolumeDown
	CmdAddBookmark
	CmdRemoveBookmark
	CmdRenameBookmark
	CmdJumpToBookmark
	CmdToggleSpoiler
	CmdQuit
)

// String returns the string representation of the command type.
func (t CommandType) String() string {
	switch t {
	case CmdPlayPause:
		return "play_pause"
	case CmdSeekForward:
		return "seek_forward"
	case CmdSeekBack:
		return "seek_back"
	case CmdNextUnit:
		return "next_unit"
	case CmdPrevUnit:
		return "prev_unit"
	case CmdSeekToUnit:
		return "seek_to_unit"
	case CmdSpeedUp:
		return "speed_up"
	case CmdSpeedDown:
		return "speed_down"
	case CmdSetSpeed:
		return "set_speed"
	case CmdVolumeUp:
		return "volume_up"
	case CmdVolumeDown:
		return "volume_down"
	case CmdAddBookmark:
		return "add_bookmark"
	case CmdRemoveBookmark:
		return "remove_bookmark"
	case CmdRenameBookmark:
		return "rename_bookmark"
	case CmdJumpToBookmark:
		return "jump_to_bookmark"
	case CmdToggleSpoiler:
		return "toggle_spoiler"
	case CmdQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Command is one user command with its arguments. Unused fields are
// ignored.
type Command struct {
	Type       CommandType
	UnitIndex  int     // CmdSeekToUnit
	Value      float64 // CmdSetSpeed
	Label      string  // CmdAddBookmark, CmdRenameBookmark
	BookmarkID string  // CmdRemoveBookmark, CmdRenameBookmark, CmdJumpToBookmark
}
