package lmm

// updateModifiedConstraintSet records c as modified together with every
// constraint reachable from it through enabled variables.
func (s *System) updateModifiedConstraintSet(c *Constraint) {
	if !s.selectiveUpdate || c.modifiedHook.Linked() {
		return
	}
	s.modifiedConstraints.PushBack(c, &c.modifiedHook)
	s.updateModifiedConstraintSetRec(c)
}

// updateModifiedVariable records every constraint of v as modified, including
// those already linked before v was enabled.
func (s *System) updateModifiedVariable(v *Variable) {
	for i := range v.cnsts {
		s.updateModifiedConstraintSet(v.cnsts[i].constraint)
	}
}

func (s *System) updateModifiedConstraintSetRec(c *Constraint) {
	for e := range c.enabled.All() {
		v := e.variable
		for i := range v.cnsts {
			if v.visited == s.visitedCounter {
				break
			}
			other := v.cnsts[i].constraint
			if other != c && !other.modifiedHook.Linked() {
				s.modifiedConstraints.PushBack(other, &other.modifiedHook)
				s.updateModifiedConstraintSetRec(other)
			}
		}
		v.visited = s.visitedCounter
	}
}

// removeAllModifiedConstraints empties the modified constraint set. Moving the
// visited counter forward unflags every variable at once.
func (s *System) removeAllModifiedConstraints() {
	s.visitedCounter++
	if s.visitedCounter == 1 {
		for v := range s.variables.All() {
			v.visited = 0
		}
	}
	s.modifiedConstraints.Clear()
}

// ModifiedConstraints returns a snapshot of the constraints the next selective solve will visit.
func (s *System) ModifiedConstraints() []*Constraint { return s.modifiedConstraints.Values() }

func (s *System) markModified(v *Variable) {
	if !v.modifiedHook.Linked() {
		s.modifiedVariables.PushBack(v, &v.modifiedHook)
	}
}

// PopModified dequeues the oldest variable whose value may have changed in the last solves.
func (s *System) PopModified() (*Variable, bool) {
	return s.modifiedVariables.PopFront()
}

// RemoveModified drops v from the modified queue. It is a no-op when v is not queued.
func (s *System) RemoveModified(v *Variable) {
	s.modifiedVariables.Remove(&v.modifiedHook)
}

// InModified reports whether v is queued as modified.
func (s *System) InModified(v *Variable) bool {
	return v.modifiedHook.In(&s.modifiedVariables)
}

// ModifiedLen returns the number of queued modified variables.
func (s *System) ModifiedLen() int { return s.modifiedVariables.Len() }

// ClearModified drops every queued modified variable.
func (s *System) ClearModified() { s.modifiedVariables.Clear() }

// QueueModified queues v as modified so that its owner revisits it after the next solve.
func (s *System) QueueModified(v *Variable) {
	s.mustLive(v)
	s.markModified(v)
}
