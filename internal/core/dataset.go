package core

// Dataset is the whole database treated as one atomic snapshot. Every
// store backend loads and saves it as a unit.
type Dataset struct {
	Users      []User     `json:"users"`
	Categories []Category `json:"categories"`
	Accounts   []Account  `json:"accounts"`
	Sessions   []Session  `json:"sessions"`
	Ops        []OpEntry  `json:"user_ops"`
}

// Normalize repairs a snapshot read from storage: nil collections
// become empty and sessions missing a segment list get one
// reconstructed from their start/end times.
func (d *Dataset) Normalize() {
	if d.Users == nil {
		d.Users = []User{}
	}

	if d.Categories == nil {
		d.Categories = []Category{}
	}

	if d.Accounts == nil {
		d.Accounts = []Account{}
	}

	if d.Sessions == nil {
		d.Sessions = []Session{}
	}

	if d.Ops == nil {
		d.Ops = []OpEntry{}
	}

	for i := range d.Sessions {
		s := &d.Sessions[i]
		if s.Segments != nil {
			continue
		}

		if s.EndTime != 0 {
			s.Segments = []Segment{}
		} else {
			s.Segments = []Segment{{StartTime: s.StartTime}}
		}
	}
}

// Clone returns a deep copy of the snapshot so that readers never
// alias the stored state.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Users:      append([]User(nil), d.Users...),
		Categories: append([]Category(nil), d.Categories...),
		Accounts:   append([]Account(nil), d.Accounts...),
		Sessions:   append([]Session(nil), d.Sessions...),
		Ops:        append([]OpEntry(nil), d.Ops...),
	}

	for i := range out.Sessions {
		out.Sessions[i].Segments = append(
			[]Segment(nil),
			out.Sessions[i].Segments...)
	}

	for i := range out.Ops {
		if out.Ops[i].Data == nil {
			continue
		}

		data := make(map[string]any, len(out.Ops[i].Data))
		for k, v := range out.Ops[i].Data {
			data[k] = v
		}

		out.Ops[i].Data = data
	}

	return out
}

// NextUserID returns the next monotonically assigned user id.
func (d *Dataset) NextUserID() int64 {
	var m int64
	for i := range d.Users {
		if d.Users[i].ID > m {
			m = d.Users[i].ID
		}
	}

	return m + 1
}

func (d *Dataset) NextCategoryID() int64 {
	var m int64
	for i := range d.Categories {
		if d.Categories[i].ID > m {
			m = d.Categories[i].ID
		}
	}

	return m + 1
}

func (d *Dataset) NextAccountID() int64 {
	var m int64
	for i := range d.Accounts {
		if d.Accounts[i].ID > m {
			m = d.Accounts[i].ID
		}
	}

	return m + 1
}

func (d *Dataset) NextSessionID() int64 {
	var m int64
	for i := range d.Sessions {
		if d.Sessions[i].ID > m {
			m = d.Sessions[i].ID
		}
	}

	return m + 1
}

func (d *Dataset) nextOpID() int64 {
	var m int64
	for i := range d.Ops {
		if d.Ops[i].ID > m {
			m = d.Ops[i].ID
		}
	}

	return m + 1
}

// AppendOp records one audit entry and returns it.
func (d *Dataset) AppendOp(ts, userID int64, typ string, data map[string]any) OpEntry {
	entry := OpEntry{
		ID:     d.nextOpID(),
		TS:     ts,
		UserID: userID,
		Type:   typ,
		Data:   data,
	}
	d.Ops = append(d.Ops, entry)

	return entry
}

// FindSession returns the session with the given id, or nil.
func (d *Dataset) FindSession(id int64) *Session {
	for i := range d.Sessions {
		if d.Sessions[i].ID == id {
			return &d.Sessions[i]
		}
	}

	return nil
}

// FindCategory returns the category with the given id, or nil.
func (d *Dataset) FindCategory(id int64) *Category {
	for i := range d.Categories {
		if d.Categories[i].ID == id {
			return &d.Categories[i]
		}
	}

	return nil
}

// FindAccount returns the account with the given id, or nil.
func (d *Dataset) FindAccount(id int64) *Account {
	for i := range d.Accounts {
		if d.Accounts[i].ID == id {
			return &d.Accounts[i]
		}
	}

	return nil
}

// NewDataset returns an empty, normalized snapshot.
func NewDataset() *Dataset {
	d := &Dataset{}
	d.Normalize()

	return d
}
