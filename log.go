package ketama

import "github.com/sirupsen/logrus"

// LogTrace returns a Trace which logs ring events with given logger.
// Membership changes are logged at info level, point collisions at warning
// level.
func LogTrace(log logrus.FieldLogger) Trace {
	return Trace{
		OnAdd: func(s Server, w int) {
			log.WithFields(logrus.Fields{
				"server": s.Name(),
				"addr":   s.Addr(),
				"weight": w,
			}).Info("server added to the ring")
		},
		OnRemove: func(s Server) {
			log.WithFields(logrus.Fields{
				"server": s.Name(),
				"addr":   s.Addr(),
			}).Info("server removed from the ring")
		},
		OnCollision: func(v uint32, prev, next Server) {
			log.WithFields(logrus.Fields{
				"point": v,
				"prev":  prev.Name(),
				"next":  next.Name(),
			}).Warn("ring point collision")
		},
		OnSynchronize: func(added, removed int) {
			log.WithFields(logrus.Fields{
				"added":   added,
				"removed": removed,
			}).Debug("ring synchronized")
		},
	}
}
